// Package harness runs randomized-input fuzz passes against an inference
// engine.
//
// A Prediction binds one model to one engine session. The model can come
// from a file path, from an in-memory graph that is serialized into an
// engine-allocated buffer, or from raw ORT-format bytes. For every declared
// tensor input the harness synthesizes reproducible random data from a seed,
// binds it, runs inference and writes inputs, outputs and failures to a Sink:
//
//	engine, err := harness.NewORTEngine()
//	if err != nil {
//		return err
//	}
//	p, err := harness.NewFromPath(engine, "model.onnx", harness.WithSink(harness.NewSink(os.Stdout)))
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//
//	if err := p.SetupInput(42); err != nil {
//		return err
//	}
//	if err := p.Run(); err != nil {
//		return err
//	}
//	return p.PrintOutputs()
//
// The harness does not check outputs for correctness. It only reports whether
// inference completed for the synthesized inputs.
package harness

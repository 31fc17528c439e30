// Package mem implements an in-memory process engine, used for testing purposes.
/*
mem provides a full implementation of the [engine.Engine] interface, backed by a go-memdb database.
Since a memdb allows one write transaction at a time, all commands are serialized.

Create an Engine

	e, err := mem.New(func(o *mem.Options) {
		o.Common.EngineId = "my-mem-engine"
	})
	if err != nil {
		log.Fatalf("failed to create mem engine: %v", err)
	}

	defer e.Shutdown()
*/
package mem

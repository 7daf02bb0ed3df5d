// Package sandbox hosts encoded values in WebAssembly guest memory.
//
// A Sandbox instantiates a memory-only guest module on a wazero runtime
// and exposes its linear memory as a schemabuf.Buffer, so layouts can be
// encoded directly where guest code reads them:
//
//	sb, err := sandbox.New(ctx, sandbox.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer sb.Close(ctx)
//
//	if err := sb.Reserve(4096); err != nil {
//	    return err
//	}
//	n, err := enc.Encode(roomLayout, room, sb.Memory())
//
// WrapMemory adapts the memory of any other wazero module.
package sandbox

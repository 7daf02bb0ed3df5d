package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/schemabuf/layout"
	"github.com/wippyai/schemabuf/sandbox"
	"github.com/wippyai/schemabuf/transcoder"
	"github.com/wippyai/schemabuf/witschema"
)

func main() {
	var (
		witFile     = flag.String("wit", "", "Path to WIT JSON (wasm-tools component wit --json)")
		typeName    = flag.String("type", "", "Type to inspect")
		value       = flag.String("value", "", "JSON value to encode with -type")
		list        = flag.Bool("list", false, "List imported types and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Log compilation and sandbox activity")
	)
	flag.Parse()

	if *witFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: layoutc -wit <types.json> [-list]")
		fmt.Fprintln(os.Stderr, "       layoutc -wit <types.json> -type name [-value json]")
		fmt.Fprintln(os.Stderr, "       layoutc -wit <types.json> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync() //nolint:errcheck
		transcoder.SetLogger(log.Named("transcoder"))
		sandbox.SetLogger(log.Named("sandbox"))
	}

	types, skipped, err := load(*witFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*witFile, types); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(types, skipped, *typeName, *value, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func load(path string) (map[string]layout.Layout, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open WIT JSON: %w", err)
	}
	defer f.Close()

	res, err := witschema.DecodeJSON(f)
	if err != nil {
		return nil, nil, err
	}

	im := witschema.NewImporter()
	im.SkipUnimplemented = true
	types, err := im.ImportResolve(res)
	if err != nil {
		return nil, nil, fmt.Errorf("import: %w", err)
	}
	return types, im.Skipped(), nil
}

func run(types map[string]layout.Layout, skipped []string, typeName, value string, listOnly bool) error {
	styled := term.IsTerminal(int(os.Stdout.Fd()))
	compiler := transcoder.NewCompiler()

	names := sortedNames(types)
	if typeName != "" {
		if _, ok := types[typeName]; !ok {
			return fmt.Errorf("unknown type %q", typeName)
		}
		names = []string{typeName}
	}

	fmt.Println(traitsTable(compiler, types, names, styled))
	if len(skipped) > 0 {
		fmt.Printf("\nSkipped (no layout): %s\n", strings.Join(skipped, ", "))
	}

	if listOnly || typeName == "" || value == "" {
		return nil
	}

	out, err := transcode(context.Background(), compiler, types[typeName], value)
	if err != nil {
		return err
	}
	fmt.Printf("\nEncoded %d bytes:\n%s", len(out.encoded), out.dump)
	fmt.Printf("\nDecoded:\n%s\n", out.decoded)
	return nil
}

type transcodeResult struct {
	encoded []byte
	dump    string
	decoded string
}

// transcode encodes a JSON value into sandbox guest memory and decodes it
// back from there.
func transcode(ctx context.Context, compiler *transcoder.Compiler, l layout.Layout, input string) (*transcodeResult, error) {
	var raw any
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}
	v := shapeValue(l, raw)

	enc := transcoder.NewEncoderWithCompiler(compiler, nil)
	dec := transcoder.NewDecoderWithCompiler(compiler, nil)

	encoded, err := enc.EncodeToBytes(l, v)
	if err != nil {
		return nil, err
	}

	sb, err := sandbox.New(ctx, sandbox.DefaultConfig())
	if err != nil {
		return nil, err
	}
	defer sb.Close(ctx)

	if err := sb.Reserve(uint32(len(encoded))); err != nil {
		return nil, err
	}
	if _, err := enc.Encode(l, v, sb.Memory()); err != nil {
		return nil, err
	}
	guest, err := sb.Memory().Read(0, uint32(len(encoded)))
	if err != nil {
		return nil, err
	}

	decoded, err := dec.Decode(l, sb.Memory(), 0)
	if err != nil {
		return nil, err
	}
	text, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render decoded value: %w", err)
	}

	return &transcodeResult{
		encoded: slices.Clone(guest),
		dump:    hexDump(guest),
		decoded: string(text),
	}, nil
}

func sortedNames(types map[string]layout.Layout) []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

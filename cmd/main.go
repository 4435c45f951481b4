package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"time"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/alitto/pond"
	"github.com/urfave/cli/v2"

	tk "github.com/sixy6e/tilekernel"
)

// array_vacuum collapses the fragment directory at uri, deleting any
// fragment superseded by a later consolidation, reporting how many
// fragments were removed.
func array_vacuum(uri, configURI string) error {
	ctx, vfs, cleanup, err := openVFS(configURI)
	if err != nil {
		return err
	}
	defer cleanup()

	fd := tk.OpenFragmentDirectory(ctx, vfs, uri)
	all, err := fd.List()
	if err != nil {
		return err
	}
	toVacuum, err := fd.ToVacuum()
	if err != nil {
		return err
	}
	vacSet := make(map[string]bool, len(toVacuum))
	for _, u := range toVacuum {
		vacSet[u] = true
	}

	kept := tk.RemoveConsolidatedFragmentURIs(all)
	keptSet := make(map[string]bool, len(kept))
	for _, f := range kept {
		keptSet[f.URI] = true
	}

	removed := 0
	for _, f := range all {
		if keptSet[f.URI] && !vacSet[f.URI] {
			continue
		}
		if err := vfs.RemoveDir(f.URI); err != nil {
			log.Printf("vacuum: failed to remove %s: %v", f.URI, err)
			continue
		}
		removed++
	}

	log.Printf("array %s: removed %d of %d fragments", uri, removed, len(all))
	return nil
}

// array_create builds and persists an ArraySchema descriptor at uri.
// Dimension/attribute shape is fixed for this command (a single int64
// dimension named "d0" and a single float64 attribute named "a0"); richer
// schema construction is expected to go through the library API directly
// rather than the CLI.
func array_create(uri, configURI string, dense bool, extent int64, lo, hi int64) error {
	_, vfs, cleanup, err := openVFS(configURI)
	if err != nil {
		return err
	}
	defer cleanup()

	atype := tk.Sparse
	if dense {
		atype = tk.Dense
	}
	schema := tk.NewArraySchema(atype)
	dim := tk.Dimension{
		Name:   "d0",
		Dtype:  tk.Int64,
		Lo:     tk.IntCoord(tk.Int64, lo),
		Hi:     tk.IntCoord(tk.Int64, hi),
		Extent: tk.IntCoord(tk.Int64, extent),
	}
	if err := schema.Domain.AddDimension(dim); err != nil {
		return err
	}
	schema.AddAttribute(tk.Attribute{Name: "a0", Dtype: tk.Float64, CellValNum: 1})

	if err := schema.Check(); err != nil {
		return err
	}

	if _, err := tk.WriteMetadataJSON(vfs, uri+"/__schema.json", schemaDescriptorFor(schema)); err != nil {
		return err
	}
	log.Printf("created %s array at %s", arrayTypeName(dense), uri)
	return nil
}

func arrayTypeName(dense bool) string {
	if dense {
		return "dense"
	}
	return "sparse"
}

// schemaDescriptorFor flattens an ArraySchema to a plain map for JSON
// persistence; ArraySchema itself carries a *tiledb.FilterList per
// attribute which doesn't round-trip through encoding/json.
func schemaDescriptorFor(s *tk.ArraySchema) any {
	d := s.Domain.Dimensions[0]
	attrs := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		attrs[i] = a.Name
	}
	return map[string]any{
		"array_type": arrayTypeName(s.ArrayType == tk.Dense),
		"dimension":  map[string]any{"name": d.Name, "lo": d.Lo.I, "hi": d.Hi.I, "extent": d.Extent.I},
		"attributes": attrs,
	}
}

// fragment_info prints the URI and timestamp range of every committed
// fragment under uri.
func fragment_info(uri, configURI string) error {
	ctx, vfs, cleanup, err := openVFS(configURI)
	if err != nil {
		return err
	}
	defer cleanup()

	fd := tk.OpenFragmentDirectory(ctx, vfs, uri)
	frags, err := fd.List()
	if err != nil {
		return err
	}
	for _, f := range frags {
		fmt.Printf("%s\tts=[%s,%s]\n", f.URI, f.TsStart.Format(time.RFC3339Nano), f.TsEnd.Format(time.RFC3339Nano))
	}
	return nil
}

// fragment_info_list runs fragment_info across the given array URIs
// concurrently, using the same fixed n=2*NumCPU pool shape as the
// conversion pool this CLI's predecessor used.
func fragment_info_list(uris []string, configURI string) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	n := runtime.NumCPU() * 2
	pool := pond.New(n, 0, pond.MinWorkers(n), pond.Context(runCtx))
	defer pool.StopAndWait()

	for _, u := range uris {
		uri := u
		pool.Submit(func() {
			if err := fragment_info(uri, configURI); err != nil {
				log.Printf("fragment info failed for %s: %v", uri, err)
			}
		})
	}
	return nil
}

func openVFS(configURI string) (*tiledb.Context, *tiledb.VFS, func(), error) {
	var (
		config *tiledb.Config
		err    error
	)
	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return nil, nil, nil, tk.Fail(tk.KindInternal, "building config", err)
	}

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		config.Free()
		return nil, nil, nil, tk.Fail(tk.KindInternal, "creating context", err)
	}

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		ctx.Free()
		config.Free()
		return nil, nil, nil, tk.Fail(tk.KindInternal, "creating vfs", err)
	}

	cleanup := func() {
		vfs.Free()
		ctx.Free()
		config.Free()
	}
	return ctx, vfs, cleanup, nil
}

func main() {
	app := &cli.App{
		Name:  "tilekernel",
		Usage: "tile-domain planning, fragment reconciliation, and streaming reads/writes over a multidimensional array store",
		Commands: []*cli.Command{
			{
				Name: "array",
				Subcommands: []*cli.Command{
					{
						Name: "create",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "uri", Required: true},
							&cli.StringFlag{Name: "config-uri"},
							&cli.BoolFlag{Name: "dense"},
							&cli.Int64Flag{Name: "extent", Value: 1000},
							&cli.Int64Flag{Name: "lo", Value: 0},
							&cli.Int64Flag{Name: "hi", Value: 999999},
						},
						Action: func(cCtx *cli.Context) error {
							return array_create(cCtx.String("uri"), cCtx.String("config-uri"), cCtx.Bool("dense"), cCtx.Int64("extent"), cCtx.Int64("lo"), cCtx.Int64("hi"))
						},
					},
					{
						Name: "vacuum",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "uri", Required: true},
							&cli.StringFlag{Name: "config-uri"},
						},
						Action: func(cCtx *cli.Context) error {
							return array_vacuum(cCtx.String("uri"), cCtx.String("config-uri"))
						},
					},
				},
			},
			{
				Name: "fragment",
				Subcommands: []*cli.Command{
					{
						Name: "info",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "uri", Required: true},
							&cli.StringFlag{Name: "config-uri"},
						},
						Action: func(cCtx *cli.Context) error {
							return fragment_info(cCtx.String("uri"), cCtx.String("config-uri"))
						},
					},
					{
						Name:  "info-list",
						Usage: "report fragment info for several arrays concurrently",
						Flags: []cli.Flag{
							&cli.StringSliceFlag{Name: "uri", Required: true},
							&cli.StringFlag{Name: "config-uri"},
						},
						Action: func(cCtx *cli.Context) error {
							return fragment_info_list(cCtx.StringSlice("uri"), cCtx.String("config-uri"))
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		var kind tk.Kind
		if ke, ok := tk.AsKernelError(err); ok {
			kind = ke.Kind
		}
		log.Println(err)
		os.Exit(kind.ExitCode())
	}
}

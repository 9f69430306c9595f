package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/aleksaelezovic/trigo-tdb/internal/logging"
	"github.com/aleksaelezovic/trigo-tdb/internal/nquads"
	"github.com/aleksaelezovic/trigo-tdb/pkg/params"
	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/tdb"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/prometheus/client_golang/prometheus"
)

func usage() {
	fmt.Println("Usage: tdb <command> [flags] [args]")
	fmt.Println("Commands:")
	fmt.Println("  load -loc DIR file...     - Load N-Quads / N-Triples files")
	fmt.Println("  find -loc DIR S P O [G]   - Print matching quads ('?' or '_' matches anything)")
	fmt.Println("  stats -loc DIR            - Show index sizes")
	fmt.Println("  params -loc DIR           - Print the resolved store params")
	fmt.Println("  demo                      - Run a demo against an in-memory store")
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "load":
		err = runLoad(args)
	case "find":
		err = runFind(args)
	case "stats":
		err = runStats(args)
	case "params":
		err = runParams(args)
	case "demo":
		err = runDemo()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("tdb %s: %v", command, err)
	}
}

// storeFlags are the flags shared by every command that opens a location
type storeFlags struct {
	loc     string
	params  string
	family  string
	sync    bool
	verbose bool
}

func newFlagSet(name string, sf *storeFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&sf.loc, "loc", "", "store location (directory)")
	fs.StringVar(&sf.params, "params", "", "YAML params file; flags override its values")
	fs.StringVar(&sf.family, "family", "", "index family for a new location: badger or pebble")
	fs.BoolVar(&sf.sync, "sync", false, "flush every write")
	fs.BoolVar(&sf.verbose, "v", false, "debug logging")
	return fs
}

func (sf *storeFlags) open() (*tdb.Store, error) {
	if sf.loc == "" {
		return nil, errors.New("-loc is required")
	}
	b := params.NewBuilder()
	if sf.params != "" {
		fromFile, err := params.ReadFile(sf.params)
		if err != nil {
			return nil, err
		}
		b = params.From(fromFile)
	}
	if sf.family != "" {
		b.IndexFamily(params.IndexFamily(sf.family))
	}
	if sf.sync {
		b.FileMode(params.FileModeSync)
	}
	app, err := b.Build()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if sf.verbose {
		level = slog.LevelDebug
	}
	return tdb.Open(sf.loc, app, tdb.WithLogger(logging.NewDefaultLogger(level)))
}

func runLoad(args []string) error {
	var sf storeFlags
	fs := newFlagSet("load", &sf)
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("no input files")
	}

	st, err := sf.open()
	if err != nil {
		return err
	}
	defer st.Close()

	var total, added int
	for _, path := range fs.Args() {
		t, a, err := loadFile(st, path)
		total += t
		added += a
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := st.Sync(); err != nil {
		return err
	}
	fmt.Printf("Read %d quads, %s new\n", total, color.GreenString("%d", added))
	return nil
}

func loadFile(st *tdb.Store, path string) (total, added int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	r := nquads.NewReader(f)
	var prefixErr error
	r.OnPrefix = func(prefix, iri string) {
		if prefixErr == nil {
			prefixErr = st.SetPrefix(nil, prefix, iri)
		}
	}
	for {
		q, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, added, err
		}
		if prefixErr != nil {
			return total, added, prefixErr
		}
		total++
		isNew, err := st.Add(q)
		if err != nil {
			return total, added, err
		}
		if isNew {
			added++
		}
	}
	return total, added, prefixErr
}

// patternTerm parses one find argument; '?' and '_' match anything
func patternTerm(arg string, prefixes map[string]string) (rdf.Term, error) {
	if arg == "?" || arg == "_" {
		return nil, nil
	}
	if arg == "DEFAULT" {
		return rdf.NewDefaultGraph(), nil
	}
	return nquads.ParseTerm(arg, prefixes)
}

func runFind(args []string) error {
	var sf storeFlags
	fs := newFlagSet("find", &sf)
	limit := fs.Int("limit", 0, "stop after this many quads (0 = no limit)")
	_ = fs.Parse(args)
	if fs.NArg() != 3 && fs.NArg() != 4 {
		return errors.New("usage: find -loc DIR S P O [G]")
	}

	st, err := sf.open()
	if err != nil {
		return err
	}
	defer st.Close()

	prefixes, err := st.Prefixes(nil)
	if err != nil {
		return err
	}
	var pattern [4]rdf.Term
	for i, arg := range fs.Args() {
		if pattern[i], err = patternTerm(arg, prefixes); err != nil {
			return err
		}
	}

	it, err := st.Find(pattern[3], pattern[0], pattern[1], pattern[2])
	if err != nil {
		return err
	}
	defer it.Close()

	w := nquads.NewWriter(os.Stdout)
	n := 0
	for it.Next() {
		if err := w.Write(it.Quad()); err != nil {
			return err
		}
		n++
		if *limit > 0 && n >= *limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d quads\n", n)
	return nil
}

func runStats(args []string) error {
	var sf storeFlags
	fs := newFlagSet("stats", &sf)
	_ = fs.Parse(args)

	st, err := sf.open()
	if err != nil {
		return err
	}
	defer st.Close()
	return printStats(st)
}

func header(cols ...string) []string {
	bold := color.New(color.FgCyan, color.Bold)
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = bold.Sprint(c)
	}
	return out
}

func printStats(st *tdb.Store) error {
	tables, err := st.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Location: %s\n\n", st.Location())
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeaderAutoFormat(tw.Off))
	table.Header(header("Table", "Index", "Mapping", "Primary", "Size"))
	for _, t := range tables {
		for _, idx := range t.Indexes {
			primary := ""
			if idx.Primary {
				primary = color.GreenString("yes")
			}
			_ = table.Append([]string{t.Name, idx.Name, idx.Mapping, primary, strconv.FormatInt(idx.Size, 10)})
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	return printMetrics(st)
}

// printMetrics gathers the store's collectors through a private registry
func printMetrics(st *tdb.Store) error {
	reg := prometheus.NewRegistry()
	if err := st.Register(reg); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	var rows [][]string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				if labels != "" {
					labels += ","
				}
				labels += lp.GetName() + "=" + lp.GetValue()
			}
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			default:
				continue
			}
			rows = append(rows, []string{mf.GetName(), labels, strconv.FormatFloat(v, 'f', -1, 64)})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i][0] != rows[j][0] {
			return rows[i][0] < rows[j][0]
		}
		return rows[i][1] < rows[j][1]
	})

	fmt.Println()
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeaderAutoFormat(tw.Off))
	table.Header(header("Metric", "Labels", "Value"))
	for _, r := range rows {
		_ = table.Append(r)
	}
	return table.Render()
}

func runParams(args []string) error {
	var sf storeFlags
	fs := newFlagSet("params", &sf)
	_ = fs.Parse(args)

	st, err := sf.open()
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Print(st.Params().String())
	return nil
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

type summaryCmd struct {
	Path string `arg:"" type:"existingfile" help:"Counters log written by the reporter"`
}

type nameSummary struct {
	records int
	noData  int
	last    float64
	min     float64
	max     float64
}

func (s *nameSummary) add(v float64) {
	if s.records == 0 || v < s.min {
		s.min = v
	}
	if s.records == 0 || v > s.max {
		s.max = v
	}
	s.last = v
	s.records++
}

// summarise folds every record line of r into per-name summaries. Lines that
// are not JSON objects are skipped and counted.
func summarise(r io.Reader) (map[string]*nameSummary, int, error) {
	out := make(map[string]*nameSummary)
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !gjson.Valid(line) || !gjson.Parse(line).IsObject() {
			skipped++
			continue
		}

		gjson.Parse(line).ForEach(func(key, value gjson.Result) bool {
			if key.String() == "_time" {
				return true
			}

			s, ok := out[key.String()]
			if !ok {
				s = &nameSummary{}
				out[key.String()] = s
			}

			num := value.Get("0")
			if num.Type != gjson.Number {
				s.noData++
				return true
			}

			s.add(num.Float())
			return true
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read records: %w", err)
	}

	return out, skipped, nil
}

func writeSummary(w io.Writer, sums map[string]*nameSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tRECORDS\tNO DATA\tLAST\tMIN\tMAX")

	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		s := sums[name]
		if s.records == 0 {
			fmt.Fprintf(tw, "%s\t0\t%d\t-\t-\t-\n", name, s.noData)
			continue
		}

		fmt.Fprintf(tw, "%s\t%d\t%d\t%g\t%g\t%g\n", name, s.records, s.noData, s.last, s.min, s.max)
	}

	return tw.Flush()
}

func (c summaryCmd) Run() error {
	file, err := os.Open(c.Path)
	if err != nil {
		return fmt.Errorf("open counters log: %w", err)
	}
	defer file.Close()

	sums, skipped, err := summarise(file)
	if err != nil {
		return err
	}

	if skipped > 0 {
		log.Warn().
			Str("path", c.Path).
			Int("lines", skipped).
			Msg("Skipped Unparseable Lines")
	}

	return writeSummary(os.Stdout, sums)
}

// Package export streams aggregated records out of the store for downstream
// consumers: Darwin Core CSV for archive ingestion and a triage workbook for
// curators working the flag queue.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/store"
)

const pageSize = 200

// Item is one exported specimen: its registration, current record if any,
// and current flags.
type Item struct {
	Specimen model.Specimen
	Record   *model.AggregatedRecord
	Flags    []model.QualityFlag
}

// Iterator walks specimens in identity order, one store page at a time.
// The cursor makes long exports restartable: persist Cursor() and pass it
// back as the filter's After to resume past the last emitted specimen.
type Iterator struct {
	store  store.Store
	filter store.SpecimenFilter
	page   []model.Specimen
	idx    int
	done   bool
	cursor model.Identity
}

// NewIterator creates an Iterator over specimens matching filter. The
// filter's Limit is ignored; paging is internal.
func NewIterator(st store.Store, filter store.SpecimenFilter) *Iterator {
	filter.Limit = pageSize
	return &Iterator{store: st, filter: filter, cursor: filter.After}
}

// Next returns the next item, or nil once the listing is exhausted.
func (it *Iterator) Next(ctx context.Context) (*Item, error) {
	if it.idx >= len(it.page) {
		if it.done {
			return nil, nil
		}
		page, err := it.store.ListSpecimens(ctx, it.filter)
		if err != nil {
			return nil, eris.Wrap(err, "export: list specimens")
		}
		if len(page) == 0 {
			it.done = true
			return nil, nil
		}
		it.page = page
		it.idx = 0
		it.filter.After = page[len(page)-1].Identity
		if len(page) < pageSize {
			it.done = true
		}
	}

	sp := it.page[it.idx]
	it.idx++

	rec, err := it.store.GetAggregate(ctx, sp.Identity)
	if err != nil {
		return nil, err
	}
	flags, err := it.store.ListFlags(ctx, sp.Identity)
	if err != nil {
		return nil, err
	}
	it.cursor = sp.Identity
	return &Item{Specimen: sp, Record: rec, Flags: flags}, nil
}

// Cursor returns the identity of the last item emitted.
func (it *Iterator) Cursor() model.Identity {
	return it.cursor
}

// CSVExporter writes records as Darwin Core CSV, one specimen per row.
type CSVExporter struct {
	registry *model.FieldRegistry
}

// NewCSV creates a CSVExporter whose columns follow the registry's field
// order.
func NewCSV(reg *model.FieldRegistry) *CSVExporter {
	return &CSVExporter{registry: reg}
}

// Write drains the iterator into w. Specimens without a record still get a
// row carrying identity and sources, so exports account for every specimen
// even mid-pipeline. Returns the number of rows written.
func (e *CSVExporter) Write(ctx context.Context, w io.Writer, it *Iterator) (int, error) {
	cw := csv.NewWriter(w)

	header := []string{"identity", "sourceRefs"}
	for _, f := range e.registry.Fields {
		header = append(header, f.Key)
	}
	header = append(header, "confidence", "flags")
	if err := cw.Write(header); err != nil {
		return 0, eris.Wrap(err, "export: write csv header")
	}

	count := 0
	for {
		item, err := it.Next(ctx)
		if err != nil {
			return count, err
		}
		if item == nil {
			break
		}

		row := []string{string(item.Specimen.Identity), strings.Join(item.Specimen.SourceRefs, ";")}
		for _, f := range e.registry.Fields {
			var v string
			if item.Record != nil {
				v = item.Record.Fields[f.Key].Value
			}
			row = append(row, v)
		}
		var conf string
		if item.Record != nil {
			conf = fmt.Sprintf("%.3f", item.Record.Confidence)
		}
		row = append(row, conf, flagSummary(item.Flags))

		if err := cw.Write(row); err != nil {
			return count, eris.Wrap(err, "export: write csv row")
		}
		count++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, eris.Wrap(err, "export: flush csv")
	}
	return count, nil
}

func flagSummary(flags []model.QualityFlag) string {
	if len(flags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(flags))
	for _, f := range flags {
		parts = append(parts, string(f.Kind))
	}
	return strings.Join(parts, ";")
}

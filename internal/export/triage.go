package export

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
)

// WriteTriage drains the iterator into an XLSX workbook at path, one row
// per flag. Specimens without flags are omitted; the sheet is a curator
// worklist, not a full export. Returns the number of flag rows written.
func WriteTriage(ctx context.Context, path string, it *Iterator) (int, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Flagged Specimens")
	if err != nil {
		return 0, eris.Wrap(err, "export: add triage sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Identity", "Catalog Number", "Scientific Name", "Flag", "Severity", "Detail", "Record Confidence", "Reviewed"} {
		header.AddCell().SetString(h)
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
		for _, flag := range item.Flags {
			row := sheet.AddRow()
			row.AddCell().SetString(string(item.Specimen.Identity))
			row.AddCell().SetString(item.Record.CatalogNumber())
			row.AddCell().SetString(fieldValue(item.Record, model.FieldScientificName))
			row.AddCell().SetString(string(flag.Kind))
			row.AddCell().SetString(string(flag.Severity))
			row.AddCell().SetString(flag.Detail)
			if item.Record != nil {
				row.AddCell().SetString(fmt.Sprintf("%.3f", item.Record.Confidence))
			} else {
				row.AddCell().SetString("")
			}
			if item.Specimen.ReviewRef != "" {
				row.AddCell().SetString(item.Specimen.ReviewRef)
			} else {
				row.AddCell().SetString("")
			}
			count++
		}
	}

	if err := f.Save(path); err != nil {
		return count, eris.Wrap(err, "export: save triage workbook")
	}
	return count, nil
}

func fieldValue(rec *model.AggregatedRecord, key string) string {
	if rec == nil {
		return ""
	}
	return rec.Fields[key].Value
}

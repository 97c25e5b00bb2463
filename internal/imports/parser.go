package imports

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var receivingRequired = []string{"date", "batch_id", "sku", "quantity_received", "warehouse_id"}

// ParseReceivingCSV parses a receiving file. Columns outside the required set
// carry compliance metadata and are kept verbatim per row.
func ParseReceivingCSV(raw string) ([]ReceivingRecord, error) {
	rows, header, err := readCSV(raw)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, receivingRequired); err != nil {
		return nil, err
	}

	required := map[string]bool{}
	for _, col := range receivingRequired {
		required[col] = true
	}

	records := make([]ReceivingRecord, 0, len(rows))
	for i, row := range rows {
		date, err := parseDate(row["date"])
		if err != nil {
			return nil, fmt.Errorf("imports: row %d: bad date %q: %w", i+1, row["date"], err)
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(row["quantity_received"]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("imports: row %d: bad quantity %q", i+1, row["quantity_received"])
		}
		metadata := map[string]string{}
		for col, val := range row {
			if !required[col] {
				metadata[col] = val
			}
		}
		records = append(records, ReceivingRecord{
			Date:        date,
			BatchID:     strings.TrimSpace(row["batch_id"]),
			SKU:         strings.TrimSpace(row["sku"]),
			Quantity:    qty,
			WarehouseID: strings.TrimSpace(row["warehouse_id"]),
			Metadata:    metadata,
		})
	}
	return records, nil
}

var sellerboardRequired = []string{"sku", "Estimated Sales Velocity", "FBA/FBM Stock", "Reserved"}

// ParseSellerboardCSV parses a sellerboard stock export. The recommended
// quantity column is optional; blank numeric cells read as zero.
func ParseSellerboardCSV(raw string, asOf time.Time) ([]SellerboardRow, error) {
	rows, header, err := readCSV(raw)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, sellerboardRequired); err != nil {
		return nil, err
	}

	out := make([]SellerboardRow, 0, len(rows))
	for i, row := range rows {
		adu, err := parseFloatOrZero(row["Estimated Sales Velocity"])
		if err != nil {
			return nil, fmt.Errorf("imports: row %d: bad velocity %q", i+1, row["Estimated Sales Velocity"])
		}
		available, err := parseIntOrZero(row["FBA/FBM Stock"])
		if err != nil {
			return nil, fmt.Errorf("imports: row %d: bad stock %q", i+1, row["FBA/FBM Stock"])
		}
		reserved, err := parseIntOrZero(row["Reserved"])
		if err != nil {
			return nil, fmt.Errorf("imports: row %d: bad reserved %q", i+1, row["Reserved"])
		}
		recommended, err := parseIntOrZero(row["Recommended quantity for reordering"])
		if err != nil {
			return nil, fmt.Errorf("imports: row %d: bad recommended quantity", i+1)
		}
		out = append(out, SellerboardRow{
			SKU:                 strings.TrimSpace(row["sku"]),
			ADU:                 adu,
			FBAAvailable:        available,
			FBAReserved:         reserved,
			RecommendedQuantity: recommended,
			AsOf:                asOf,
		})
	}
	return out, nil
}

var manualOrdersRequired = []string{"sku", "ordered_1", "ordered_2", "ordered_3"}

// ParseManualOrdersCSV parses the manually tracked open order quantities.
func ParseManualOrdersCSV(raw string) ([]ManualOrdersRow, error) {
	rows, header, err := readCSV(raw)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, manualOrdersRequired); err != nil {
		return nil, err
	}

	out := make([]ManualOrdersRow, 0, len(rows))
	for i, row := range rows {
		var parsed [3]int64
		for j, col := range []string{"ordered_1", "ordered_2", "ordered_3"} {
			v, err := parseIntOrZero(row[col])
			if err != nil {
				return nil, fmt.Errorf("imports: row %d: bad %s %q", i+1, col, row[col])
			}
			parsed[j] = v
		}
		out = append(out, ManualOrdersRow{
			SKU:      strings.TrimSpace(row["sku"]),
			Ordered1: parsed[0],
			Ordered2: parsed[1],
			Ordered3: parsed[2],
		})
	}
	return out, nil
}

// readCSV parses the raw content into header-keyed row maps.
func readCSV(raw string) ([]map[string]string, []string, error) {
	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("imports: malformed csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("imports: empty file")
	}
	header := all[0]
	rows := make([]map[string]string, 0, len(all)-1)
	for _, record := range all[1:] {
		row := map[string]string{}
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

func requireColumns(header, required []string) error {
	have := map[string]bool{}
	for _, col := range header {
		have[col] = true
	}
	missing := []string{}
	for _, col := range required {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("imports: missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339")
}

func parseIntOrZero(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseFloatOrZero(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

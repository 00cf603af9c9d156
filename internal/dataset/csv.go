package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smartxerox/internal/apperr"
	"smartxerox/internal/domain"
)

// Column names of the orders export.
const (
	ColDate        = "Date"
	ColOrderID     = "Order_ID"
	ColPages       = "Total_Pages_Printed"
	ColTotalAmount = "Total_Amount"
	ColShopEarning = "Shop_Earning"
	ColAppEarning  = "App_Earning"
	ColUserName    = "User_Name"
)

var requiredColumns = []string{ColDate, ColOrderID, ColPages, ColTotalAmount, ColShopEarning, ColAppEarning, ColUserName}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
}

// LoadFile opens path and parses it with Load.
func LoadFile(path string, logger *slog.Logger) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeDataset, "open dataset")
	}
	defer f.Close()

	ds, err := Load(f, logger)
	if err != nil {
		return nil, err
	}
	ds.Source = path
	return ds, nil
}

// Load parses an orders CSV. Columns are located by header name. Rows that
// fail to parse are skipped with a warning; a file with no valid rows is an error.
func Load(r io.Reader, logger *slog.Logger) (*domain.Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.New(apperr.CodeDataset, "empty dataset")
		}
		return nil, apperr.Wrap(err, apperr.CodeDataset, "read header")
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	ds := &domain.Dataset{}
	skipped := 0
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeDataset, fmt.Sprintf("read line %d", line))
		}
		order, err := parseOrder(record, idx)
		if err != nil {
			skipped++
			logger.Warn("skipping invalid order row", "line", line, "error", err)
			continue
		}
		ds.Orders = append(ds.Orders, order)
	}

	if len(ds.Orders) == 0 {
		return nil, apperr.New(apperr.CodeDataset, "no valid records found")
	}
	logger.Info("dataset loaded", "records", len(ds.Orders), "skipped", skipped)
	return ds, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.New(apperr.CodeDataset, "missing columns: "+strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseOrder(record []string, idx map[string]int) (domain.Order, error) {
	field := func(col string) (string, error) {
		i := idx[col]
		if i >= len(record) {
			return "", fmt.Errorf("missing %s", col)
		}
		return strings.TrimSpace(record[i]), nil
	}

	raw := make(map[string]string, len(requiredColumns))
	for _, col := range requiredColumns {
		v, err := field(col)
		if err != nil {
			return domain.Order{}, err
		}
		raw[col] = v
	}

	date, err := ParseDate(raw[ColDate])
	if err != nil {
		return domain.Order{}, err
	}
	pages, err := strconv.Atoi(raw[ColPages])
	if err != nil {
		return domain.Order{}, fmt.Errorf("pages %q: %w", raw[ColPages], err)
	}
	if pages < 0 {
		return domain.Order{}, fmt.Errorf("negative pages %d", pages)
	}

	amounts := make([]decimal.Decimal, 3)
	for i, col := range []string{ColTotalAmount, ColShopEarning, ColAppEarning} {
		d, err := decimal.NewFromString(raw[col])
		if err != nil {
			return domain.Order{}, fmt.Errorf("%s %q: %w", col, raw[col], err)
		}
		if d.IsNegative() {
			return domain.Order{}, fmt.Errorf("negative %s %s", col, d)
		}
		amounts[i] = d
	}

	if raw[ColOrderID] == "" {
		return domain.Order{}, fmt.Errorf("empty order id")
	}

	return domain.Order{
		Date:        date,
		OrderID:     raw[ColOrderID],
		UserName:    raw[ColUserName],
		Pages:       pages,
		TotalAmount: amounts[0],
		ShopEarning: amounts[1],
		AppEarning:  amounts[2],
	}, nil
}

// ParseDate accepts the date layouts seen in order exports.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

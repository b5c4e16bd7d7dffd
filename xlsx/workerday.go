// Package xlsx reads and writes the worker-day exchange workbook used to
// move schedules in and out of the system.
package xlsx

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"wfm-core/errs"
	"wfm-core/model"
	"wfm-core/store"
	"wfm-core/utils"
)

const sheetName = "WorkerDays"

var headers = []string{
	"employee_id", "dt", "type", "shop_id",
	"dttm_work_start", "dttm_work_end", "work_types", "work_parts",
}

// ExportWorkerDays writes one row per worker day. Times are local clock
// values; the date column carries the day the shift belongs to, so an
// overnight end lands on the next calendar day when parsed back.
func ExportWorkerDays(w io.Writer, rows []model.WorkerDay) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	for i := range rows {
		wd := &rows[i]
		values := []interface{}{
			ptrCell(wd.EmployeeID),
			wd.Dt.Format(utils.DateLayout),
			wd.Type,
			ptrCell(wd.ShopID),
			timeCell(wd.DttmWorkStart),
			timeCell(wd.DttmWorkEnd),
			detailIDs(wd.Details),
			detailParts(wd.Details),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

// ImportWorkerDays parses a workbook back into batch inputs. The column
// layout must match the export; extra columns are ignored.
func ImportWorkerDays(r io.Reader, isFact, isApproved bool) ([]store.WorkerDayInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	defer f.Close()

	sheet := sheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetList()[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, required := range []string{"employee_id", "dt", "type"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", errs.ErrInvalidInput, required)
		}
	}

	var inputs []store.WorkerDayInput
	for r := 1; r < len(rows); r++ {
		row := rows[r]
		if len(row) == 0 || cellAt(row, cols["dt"]) == "" {
			continue
		}

		in, err := parseRow(row, cols, isFact, isApproved)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r+1, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func parseRow(row []string, cols map[string]int, isFact, isApproved bool) (store.WorkerDayInput, error) {
	var in store.WorkerDayInput
	in.IsFact = isFact
	in.IsApproved = isApproved

	dt, err := time.Parse(utils.DateLayout, cellAt(row, cols["dt"]))
	if err != nil {
		return in, fmt.Errorf("%w: bad date %q", errs.ErrInvalidInput, cellAt(row, cols["dt"]))
	}
	in.Dt = dt

	in.Type = strings.TrimSpace(cellAt(row, cols["type"]))
	if in.Type == "" {
		return in, fmt.Errorf("%w: empty day type", errs.ErrInvalidInput)
	}

	if v := cellAt(row, cols["employee_id"]); v != "" {
		id, err := parseID(v)
		if err != nil {
			return in, err
		}
		in.EmployeeID = &id
	}
	if idx, ok := cols["shop_id"]; ok {
		if v := cellAt(row, idx); v != "" {
			id, err := parseID(v)
			if err != nil {
				return in, err
			}
			in.ShopID = &id
		}
	}

	if idx, ok := cols["dttm_work_start"]; ok {
		if start, err := parseShiftTime(cellAt(row, idx), dt, nil); err != nil {
			return in, err
		} else if start != nil {
			in.DttmWorkStart = start
		}
	}
	if idx, ok := cols["dttm_work_end"]; ok {
		if end, err := parseShiftTime(cellAt(row, idx), dt, in.DttmWorkStart); err != nil {
			return in, err
		} else if end != nil {
			in.DttmWorkEnd = end
		}
	}

	details, err := parseDetails(cellAt(row, colOr(cols, "work_types")), cellAt(row, colOr(cols, "work_parts")))
	if err != nil {
		return in, err
	}
	in.Details = details
	return in, nil
}

// parseShiftTime accepts "15:04" clock values anchored to the row's date.
// An end before the start rolls to the next day.
func parseShiftTime(v string, dt time.Time, after *time.Time) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := utils.ParseTimeOnDate(dt, v)
	if err != nil {
		return nil, fmt.Errorf("%w: bad time %q", errs.ErrInvalidInput, v)
	}
	if after != nil && !t.After(*after) {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

func parseDetails(types, parts string) ([]store.DetailInput, error) {
	types = strings.TrimSpace(types)
	if types == "" {
		return nil, nil
	}

	typeList := strings.Split(types, ",")
	partList := strings.Split(parts, ",")

	var details []store.DetailInput
	for i, t := range typeList {
		id, err := parseID(strings.TrimSpace(t))
		if err != nil {
			return nil, err
		}

		part := decimal.NewFromInt(1)
		if i < len(partList) && strings.TrimSpace(partList[i]) != "" {
			part, err = decimal.NewFromString(strings.TrimSpace(partList[i]))
			if err != nil {
				return nil, fmt.Errorf("%w: bad work part %q", errs.ErrInvalidInput, partList[i])
			}
		}
		details = append(details, store.DetailInput{WorkTypeID: id, WorkPart: part})
	}
	return details, nil
}

func parseID(v string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &id); err != nil {
		return 0, fmt.Errorf("%w: bad id %q", errs.ErrInvalidInput, v)
	}
	return id, nil
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func colOr(cols map[string]int, name string) int {
	if idx, ok := cols[name]; ok {
		return idx
	}
	return -1
}

func ptrCell(v *int64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func timeCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04")
}

func detailIDs(details []model.WorkerDayDetail) string {
	parts := make([]string, 0, len(details))
	for _, d := range details {
		parts = append(parts, fmt.Sprintf("%d", d.WorkTypeID))
	}
	return strings.Join(parts, ",")
}

func detailParts(details []model.WorkerDayDetail) string {
	parts := make([]string, 0, len(details))
	for _, d := range details {
		parts = append(parts, d.WorkPart.String())
	}
	return strings.Join(parts, ",")
}

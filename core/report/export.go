package report

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

var settlementHeaders = []string{
	"Group", "Sessions held", "Sessions cancelled", "Admitted", "Payments", "Sessions paid", "Outstanding sessions", "Expected revenue",
}

// WriteSettlementXLSX writes the settlement as a single-sheet workbook.
func WriteSettlementXLSX(w io.Writer, st Settlement) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheetName := fmt.Sprintf("%04d-%02d", st.Year, st.Month)
	if _, err := f.NewSheet(sheetName); err != nil {
		return errors.Wrap(err, "creating sheet")
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return errors.Wrap(err, "removing default sheet")
	}
	index, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return errors.Wrap(err, "locating sheet")
	}
	f.SetActiveSheet(index)

	for i, header := range settlementHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err = f.SetCellValue(sheetName, cell, header); err != nil {
			return errors.Wrap(err, "writing header")
		}
	}

	rows := append(append([]SettlementRow{}, st.Rows...), st.Total)
	for i, r := range rows {
		values := []interface{}{
			r.GroupName,
			r.SessionsHeld,
			r.SessionsCancelled,
			r.AdmittedAttendances,
			r.PaymentsTotal.InexactFloat64(),
			r.SessionsPaid,
			r.OutstandingDebtSessions,
			r.ExpectedRevenue.InexactFloat64(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err = f.SetSheetRow(sheetName, cell, &values); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}

	if err = f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

package siteprofit

import (
	"encoding/csv"
	"io"
)

var csvHeader = []string{
	"Site ID",
	"Site",
	"Department",
	"Status",
	"Material Purchase Cost",
	"Labour Contractor Cost",
	"Expenses",
	"Amount Received",
	"Profit",
}

// WriteSummariesCSV emits the site profit report as CSV with two-decimal amounts.
func WriteSummariesCSV(w io.Writer, rows []Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.SiteID,
			row.SiteName,
			row.Department,
			row.Status,
			row.MaterialPurchaseCost.StringFixed(2),
			row.LabourContractorCost.StringFixed(2),
			row.Expenses.StringFixed(2),
			row.AmountReceived.StringFixed(2),
			row.Profit.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

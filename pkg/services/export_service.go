package services

import (
	"fmt"
	"io"

	"ml-forecast-admin/pkg/listview"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Model configs"

var exportHeader = []interface{}{
	"Name", "Type", "Status", "Target asset", "Target attribute", "Training data period",
	"Forecast interval", "Training interval", "Forecast periods", "Forecast frequency", "ID",
}

// ExportService は設定一覧を XLSX ワークブックに書き出します。
type ExportService struct{}

// NewExportService は新しいExportServiceを生成します。
func NewExportService() *ExportService {
	return &ExportService{}
}

// WriteXLSX は一覧の行を1設定1行で w に書き出します。
func (s *ExportService) WriteXLSX(w io.Writer, rows []listview.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		cfg := r.Config
		values := []interface{}{
			cfg.Name, string(cfg.Type()), r.Status(), r.Target(), cfg.Target.AttributeName,
			cfg.Target.TrainingDataPeriod, cfg.ForecastInterval, cfg.TrainingInterval,
			cfg.ForecastPeriods, cfg.ForecastFrequency, cfg.ID,
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "A", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, "D", "J", 20); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

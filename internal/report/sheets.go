package report

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsExporter mirrors the monthly statistics into a Google Sheet, one tab per month.
type SheetsExporter struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewSheetsExporter authenticates with a service account credentials file.
func NewSheetsExporter(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsExporter, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	service, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetsExporter{service: service, spreadsheetID: spreadsheetID}, nil
}

func (e *SheetsExporter) Name() string { return "sheets" }

func (e *SheetsExporter) Export(ctx context.Context, month string, rows []WaiterRow) error {
	if err := e.ensureTab(ctx, month); err != nil {
		return err
	}

	vr := &sheets.ValueRange{Values: sheetValues(rows)}
	_, err := e.service.Spreadsheets.Values.
		Update(e.spreadsheetID, fmt.Sprintf("'%s'!A1", month), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update values: %w", err)
	}
	return nil
}

func (e *SheetsExporter) ensureTab(ctx context.Context, title string) error {
	ss, err := e.service.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}
	if _, err := e.service.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	return nil
}

// sheetValues is the header followed by one row per waiter.
func sheetValues(rows []WaiterRow) [][]interface{} {
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	out := [][]interface{}{header}
	for _, r := range rows {
		out = append(out, rowValues(r))
	}
	return out
}

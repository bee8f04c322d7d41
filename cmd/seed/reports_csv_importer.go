package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// CSV contract
// zone,category,text,device_id,created_at,urgency,ai_category,latitude,longitude
// created_at is RFC 3339; text, urgency, ai_category and the coordinates may be empty.

var requiredColumns = []string{"zone", "category", "device_id", "created_at"}

type reportRow struct {
	Line      int
	Fields    reports.Fields
	CreatedAt time.Time
}

func importCSV(dsn string) {
	rows, err := loadCSV(*csvPath)
	if err != nil {
		fatalf("CSV error: %v", err)
	}
	if len(rows) == 0 {
		fatalf("CSV has no data rows")
	}

	fmt.Printf("Loaded %d reports from %s\n", len(rows), *csvPath)

	if *dryRun {
		printPlan(rows)
		fmt.Println("Dry run complete. No changes made.")
		return
	}

	if *replace && !*confirm {
		fatalf("Refusing to replace existing reports without --confirm. Add --dry-run to preview.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Optional advisory lock to avoid concurrent runs
	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	before, err := countReports(ctx, tx)
	if err != nil {
		fatalf("pre-count: %v", err)
	}
	fmt.Printf("Before: reports=%d\n", before)

	if *replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM crowdshield.reports`); err != nil {
			fatalf("delete reports: %v", err)
		}
	}

	if err := insertAll(ctx, tx, rows); err != nil {
		fatalf("insert data: %v", err)
	}

	after, err := countReports(ctx, tx)
	if err != nil {
		fatalf("post-count: %v", err)
	}
	fmt.Printf("After:  reports=%d\n", after)

	expected := before + int64(len(rows))
	if *replace {
		expected = int64(len(rows))
	}
	if after != expected {
		fatalf("sanity check failed: reports=%d (expected %d)", after, expected)
	}

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Println("Import complete")
}

func loadCSV(path string) ([]reportRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCSV(bufio.NewReader(f))
}

func parseCSV(src io.Reader) ([]reportRow, error) {
	r := csv.NewReader(src)
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	for _, k := range requiredColumns {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("missing required column: %s", k)
		}
	}

	col := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []reportRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}

		row, err := parseRow(line, func(name string) string { return col(rec, name) })
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func parseRow(line int, col func(string) string) (reportRow, error) {
	row := reportRow{Line: line}
	row.Fields = reports.Fields{
		Zone:     reports.Zone(col("zone")),
		Category: reports.Category(col("category")),
		DeviceID: col("device_id"),
	}

	created, err := time.Parse(time.RFC3339, col("created_at"))
	if err != nil {
		return row, fmt.Errorf("row %d: created_at: %w", line, err)
	}
	row.CreatedAt = created

	if v := col("text"); v != "" {
		row.Fields.Text = &v
	}
	if v := col("urgency"); v != "" {
		u := reports.Urgency(v)
		row.Fields.Urgency = &u
	}
	if v := col("ai_category"); v != "" {
		c := reports.Category(v)
		row.Fields.AICategory = &c
	}
	if lat, lon := col("latitude"), col("longitude"); lat != "" || lon != "" {
		la, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return row, fmt.Errorf("row %d: latitude: %w", line, err)
		}
		lo, err := strconv.ParseFloat(lon, 64)
		if err != nil {
			return row, fmt.Errorf("row %d: longitude: %w", line, err)
		}
		row.Fields.Latitude, row.Fields.Longitude = &la, &lo
	}

	if err := row.Fields.Validate(); err != nil {
		return row, fmt.Errorf("row %d: %w", line, err)
	}
	return row, nil
}

func printPlan(rows []reportRow) {
	byZone := map[reports.Zone]int{}
	oldest, newest := rows[0].CreatedAt, rows[0].CreatedAt
	for _, r := range rows {
		byZone[r.Fields.Zone]++
		if r.CreatedAt.Before(oldest) {
			oldest = r.CreatedAt
		}
		if r.CreatedAt.After(newest) {
			newest = r.CreatedAt
		}
	}
	fmt.Println("Plan preview:")
	fmt.Printf("  Reports to insert: %d\n", len(rows))
	for _, z := range reports.Zones {
		fmt.Printf("    %-12s %d\n", z, byZone[z])
	}
	fmt.Printf("  Time range: %s .. %s\n", oldest.Format(time.RFC3339), newest.Format(time.RFC3339))
	if *replace {
		fmt.Println("  Table affected (destructive): crowdshield.reports")
	}
}

func countReports(ctx context.Context, tx *sql.Tx) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM crowdshield.reports`).Scan(&n)
	return n, err
}

func insertAll(ctx context.Context, tx *sql.Tx, rows []reportRow) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO crowdshield.reports
		(id, zone, category, text, device_id, created_at, audio_url, transcript, urgency, ai_category, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		r := row.Fields.Report(uuid.NewString(), row.CreatedAt)
		_, err := stmt.ExecContext(ctx,
			r.ID, string(r.Zone), string(r.Category), r.Text, r.DeviceID, r.CreatedAt,
			r.AudioURL, r.Transcript, optString(r.Urgency), optString(r.AICategory), r.Latitude, r.Longitude)
		if err != nil {
			return fmt.Errorf("insert report from row %d: %w", row.Line, err)
		}
	}
	return nil
}

func optString[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

package seeds

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/db"
	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DemoReport is one entry of a demo file. MinutesAgo places it relative to
// the time of seeding so the dashboard shows live-looking data.
type DemoReport struct {
	Zone       reports.Zone      `yaml:"zone"`
	Category   reports.Category  `yaml:"category"`
	Text       *string           `yaml:"text"`
	DeviceID   string            `yaml:"device_id"`
	Urgency    *reports.Urgency  `yaml:"urgency"`
	AICategory *reports.Category `yaml:"ai_category"`
	Latitude   *float64          `yaml:"latitude"`
	Longitude  *float64          `yaml:"longitude"`
	MinutesAgo int               `yaml:"minutes_ago"`
}

func (d DemoReport) fields() reports.Fields {
	return reports.Fields{
		Zone:       d.Zone,
		Category:   d.Category,
		Text:       d.Text,
		DeviceID:   d.DeviceID,
		Urgency:    d.Urgency,
		AICategory: d.AICategory,
		Latitude:   d.Latitude,
		Longitude:  d.Longitude,
	}
}

type demoFile struct {
	Reports []DemoReport `yaml:"reports"`
}

// LoadDemo parses a demo file and returns the stored form of each entry.
func LoadDemo(r io.Reader, now time.Time) ([]reports.Report, error) {
	var f demoFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse demo reports: %w", err)
	}

	out := make([]reports.Report, 0, len(f.Reports))
	for i, d := range f.Reports {
		if d.MinutesAgo < 0 {
			return nil, fmt.Errorf("demo report %d: minutes_ago must not be negative", i)
		}
		fields := d.fields()
		if err := fields.Validate(); err != nil {
			return nil, fmt.Errorf("demo report %d: %w", i, err)
		}
		at := now.Add(-time.Duration(d.MinutesAgo) * time.Minute)
		out = append(out, fields.Report(uuid.NewString(), at))
	}
	return out, nil
}

func SeedDemoReports(path string, now time.Time) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", path, err)
	}
	defer file.Close()

	rs, err := LoadDemo(file, now)
	if err != nil {
		return err
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		for i := range rs {
			if err := tx.Create(&rs[i]).Error; err != nil {
				return fmt.Errorf("failed to create demo report in %s: %w", rs[i].Zone, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d demo reports\n", len(rs))
	return nil
}

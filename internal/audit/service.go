package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/model"
)

// Config holds configuration for the audit service.
type Config struct {
	// ExportDir receives one workbook per finished month.
	ExportDir string
	// RetentionDays is how long audit entries are kept. Default: 365.
	RetentionDays int
	// Location decides where months begin.
	Location *time.Location
}

// Service exports monthly workbooks and trims old audit entries.
type Service struct {
	config Config
	store  Store
	appts  AppointmentLister
	writer func() ExcelWriter
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(cfg Config, store Store, appts AppointmentLister, writerFactory func() ExcelWriter, logger zerolog.Logger) *Service {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 365
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	return &Service{
		config: cfg,
		store:  store,
		appts:  appts,
		writer: writerFactory,
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

// Run exports the previous month on the first of every month until ctx is done.
func (s *Service) Run(ctx context.Context) {
	for {
		next := s.nextFirstOfMonth()
		s.logger.Info().Time("next_run", next).Msg("next audit export scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.RunExportAndCleanup(ctx); err != nil {
			s.logger.Error().Err(err).Msg("audit export failed")
		}
	}
}

func (s *Service) nextFirstOfMonth() time.Time {
	now := s.now().In(s.config.Location)
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, s.config.Location)
}

// RunExportAndCleanup writes the previous month's workbook to ExportDir and
// deletes entries past retention. It returns the workbook path.
func (s *Service) RunExportAndCleanup(ctx context.Context) (string, error) {
	month := MonthStart(s.now().In(s.config.Location)).AddDate(0, -1, 0)

	if err := os.MkdirAll(s.config.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(s.config.ExportDir, GenerateFilename(month))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := s.ExportMonth(ctx, f, month); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	s.logger.Info().Str("path", path).Msg("audit workbook written")

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	deleted, err := s.store.DeleteAuditEntriesBefore(ctx, cutoff)
	if err != nil {
		return path, fmt.Errorf("delete old audit entries: %w", err)
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Int("retention_days", s.config.RetentionDays).Msg("cleaned up audit entries")
	}
	return path, nil
}

// ExportMonth writes appointments and events of the month starting at month.
func (s *Service) ExportMonth(ctx context.Context, w io.Writer, month time.Time) error {
	from := MonthStart(month)
	to := from.AddDate(0, 1, 0)

	appts, err := s.appts.AppointmentsBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	entries, err := s.store.AuditEntries(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load audit entries: %w", err)
	}

	excel := s.writer()
	defer excel.Close()

	if err := writeAppointments(excel, appts, s.config.Location); err != nil {
		return err
	}
	if err := writeEntries(excel, entries, s.config.Location); err != nil {
		return err
	}
	if err := excel.Save(w); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	s.logger.Debug().Int("appointments", len(appts)).Int("events", len(entries)).
		Str("month", from.Format("2006-01")).Msg("exported audit month")
	return nil
}

var appointmentColumns = []string{
	"id", "staff_id", "service_id", "customer_name", "customer_phone",
	"start", "end", "status", "price_minor", "final_price_minor", "discount_id", "discount_percent",
}

func writeAppointments(excel ExcelWriter, appts []model.Appointment, loc *time.Location) error {
	if err := excel.AddSheet("Appointments"); err != nil {
		return err
	}
	if err := excel.WriteHeader(appointmentColumns); err != nil {
		return err
	}
	for _, a := range appts {
		if err := excel.WriteRow([]any{
			a.ID, a.StaffID, a.ServiceID, a.Customer.Name, a.Customer.Phone,
			a.StartTime.In(loc).Format("2006-01-02 15:04"), a.EndTime.In(loc).Format("2006-01-02 15:04"),
			string(a.Status), a.PriceMinor, a.FinalPriceMinor, a.DiscountID, a.DiscountPercent,
		}); err != nil {
			return fmt.Errorf("write appointment %s: %w", a.ID, err)
		}
	}
	return nil
}

var entryColumns = []string{"occurred_at", "type", "session_id", "staff_id", "appointment_id", "payload"}

func writeEntries(excel ExcelWriter, entries []Entry, loc *time.Location) error {
	if err := excel.AddSheet("Events"); err != nil {
		return err
	}
	if err := excel.WriteHeader(entryColumns); err != nil {
		return err
	}
	for _, e := range entries {
		if err := excel.WriteRow([]any{
			e.OccurredAt.In(loc).Format(time.RFC3339), e.Type, e.SessionID, e.StaffID, e.AppointmentID, e.Payload,
		}); err != nil {
			return fmt.Errorf("write event %s: %w", e.EventID, err)
		}
	}
	return nil
}

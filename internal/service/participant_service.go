package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"workshopdesk/internal/importer"
	"workshopdesk/internal/metrics"
	"workshopdesk/internal/model"
	"workshopdesk/internal/repository"
	"workshopdesk/pkg/pagination"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateParticipantRequest struct {
	TicketTypeID string  `json:"ticket_type_id" binding:"required,uuid"`
	Name         string  `json:"name" binding:"required,max=255"`
	Email        string  `json:"email" binding:"required,email,max=255"`
	Phone        *string `json:"phone" binding:"omitempty,max=20"`
	Occupation   *string `json:"occupation" binding:"omitempty,max=255"`
	Address      *string `json:"address" binding:"omitempty,max=1000"`
	Company      *string `json:"company" binding:"omitempty,max=255"`
	Position     *string `json:"position" binding:"omitempty,max=255"`
	IsPaid       bool    `json:"is_paid"`
}

type UpdateParticipantRequest struct {
	TicketTypeID *string `json:"ticket_type_id" binding:"omitempty,uuid"`
	Name         *string `json:"name" binding:"omitempty,max=255"`
	Email        *string `json:"email" binding:"omitempty,email,max=255"`
	Phone        *string `json:"phone" binding:"omitempty,max=20"`
	Occupation   *string `json:"occupation" binding:"omitempty,max=255"`
	Address      *string `json:"address" binding:"omitempty,max=1000"`
	Company      *string `json:"company" binding:"omitempty,max=255"`
	Position     *string `json:"position" binding:"omitempty,max=255"`
	IsPaid       *bool   `json:"is_paid"`
}

type ParticipantResponse struct {
	ID             string  `json:"id"`
	WorkshopID     string  `json:"workshop_id"`
	TicketTypeID   string  `json:"ticket_type_id"`
	TicketTypeName string  `json:"ticket_type_name,omitempty"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Phone          *string `json:"phone"`
	Occupation     *string `json:"occupation"`
	Address        *string `json:"address"`
	Company        *string `json:"company"`
	Position       *string `json:"position"`
	TicketCode     string  `json:"ticket_code"`
	IsPaid         bool    `json:"is_paid"`
	IsCheckedIn    bool    `json:"is_checked_in"`
	CheckedInAt    *string `json:"checked_in_at"`
	CreatedAt      string  `json:"created_at"`
}

func toParticipantResponse(p *model.Participant) *ParticipantResponse {
	res := &ParticipantResponse{
		ID:           p.ID.String(),
		WorkshopID:   p.WorkshopID.String(),
		TicketTypeID: p.TicketTypeID.String(),
		Name:         p.Name,
		Email:        p.Email,
		Phone:        p.Phone,
		Occupation:   p.Occupation,
		Address:      p.Address,
		Company:      p.Company,
		Position:     p.Position,
		TicketCode:   p.TicketCode,
		IsPaid:       p.IsPaid,
		IsCheckedIn:  p.IsCheckedIn,
		CreatedAt:    p.CreatedAt.Format(timeLayout),
	}
	if p.TicketType != nil {
		res.TicketTypeName = p.TicketType.Name
	}
	if p.CheckedInAt != nil {
		at := p.CheckedInAt.Format(timeLayout)
		res.CheckedInAt = &at
	}
	return res
}

// ImportRequest is one uploaded participant spreadsheet
type ImportRequest struct {
	Filename     string
	Content      []byte
	TicketTypeID *uuid.UUID
	ChunkSize    int
}

type ImportResult struct {
	Summary   importer.Summary    `json:"summary"`
	Errors    []importer.RowError `json:"errors"`
	ArchiveAt string              `json:"archived_at,omitempty"`
}

// Export formats
const (
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"
)

// --- Interface ---

type ParticipantService interface {
	ListParticipants(ctx context.Context, workshopID uuid.UUID, params pagination.Params, filter repository.ParticipantFilter) ([]ParticipantResponse, int64, error)
	GetParticipant(ctx context.Context, workshopID, id uuid.UUID) (*ParticipantResponse, error)
	CreateParticipant(ctx context.Context, actorID *uuid.UUID, workshopID uuid.UUID, req CreateParticipantRequest) (*ParticipantResponse, error)
	UpdateParticipant(ctx context.Context, actorID *uuid.UUID, workshopID, id uuid.UUID, req UpdateParticipantRequest) (*ParticipantResponse, error)
	DeleteParticipant(ctx context.Context, actorID *uuid.UUID, workshopID, id uuid.UUID) error
	TogglePaid(ctx context.Context, actorID *uuid.UUID, workshopID, id uuid.UUID) (*ParticipantResponse, error)
	Import(ctx context.Context, actorID *uuid.UUID, workshopID uuid.UUID, req ImportRequest) (*ImportResult, error)
	Export(ctx context.Context, workshopID uuid.UUID, format string, w io.Writer) error
	QRCode(ctx context.Context, workshopID, id uuid.UUID, size int) ([]byte, error)
}

type ParticipantServiceConfig struct {
	ChunkSize int
}

type participantService struct {
	participants repository.ParticipantRepository
	workshops    repository.WorkshopRepository
	ticketTypes  repository.TicketTypeRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	archiver     Archiver
	events       EventPublisher
	metrics      *metrics.Metrics
	cfg          ParticipantServiceConfig
	logger       *zap.Logger
}

// NewParticipantService wires the participant use cases. archiver, events and m may be nil.
func NewParticipantService(
	participants repository.ParticipantRepository,
	workshops repository.WorkshopRepository,
	ticketTypes repository.TicketTypeRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	archiver Archiver,
	events EventPublisher,
	m *metrics.Metrics,
	cfg ParticipantServiceConfig,
	logger *zap.Logger,
) ParticipantService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = importer.DefaultChunkSize
	}
	return &participantService{
		participants: participants,
		workshops:    workshops,
		ticketTypes:  ticketTypes,
		auditRepo:    auditRepo,
		txManager:    txManager,
		archiver:     archiver,
		events:       events,
		metrics:      m,
		cfg:          cfg,
		logger:       logger,
	}
}

func (s *participantService) publish(event string, payload any) {
	if s.events != nil {
		s.events.Publish(event, payload)
	}
}

func (s *participantService) ListParticipants(ctx context.Context, workshopID uuid.UUID, params pagination.Params, filter repository.ParticipantFilter) ([]ParticipantResponse, int64, error) {
	if _, err := s.workshops.FindByID(ctx, workshopID); err != nil {
		return nil, 0, notFound(err, "workshop")
	}
	participants, total, err := s.participants.List(ctx, workshopID, params, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch participants: %w", err)
	}

	res := make([]ParticipantResponse, 0, len(participants))
	for i := range participants {
		res = append(res, *toParticipantResponse(&participants[i]))
	}
	return res, total, nil
}

func (s *participantService) findInWorkshop(ctx context.Context, workshopID, id uuid.UUID) (*model.Participant, error) {
	p, err := s.participants.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "participant")
	}
	if p.WorkshopID != workshopID {
		return nil, fmt.Errorf("participant %w", ErrNotFound)
	}
	return p, nil
}

func (s *participantService) GetParticipant(ctx context.Context, workshopID, id uuid.UUID) (*ParticipantResponse, error) {
	p, err := s.findInWorkshop(ctx, workshopID, id)
	if err != nil {
		return nil, err
	}
	return toParticipantResponse(p), nil
}

// ticketTypeOf parses raw and checks it belongs to the workshop
func (s *participantService) ticketTypeOf(ctx context.Context, workshopID uuid.UUID, raw string) (*model.TicketType, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, validationf("ticket_type_id must be a UUID")
	}
	tt, err := s.ticketTypes.FindByID(ctx, id)
	if err != nil || tt.WorkshopID != workshopID {
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("failed to fetch ticket type: %w", err)
		}
		return nil, validationf("ticket type does not belong to this workshop")
	}
	return tt, nil
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func (s *participantService) CreateParticipant(ctx context.Context, actorID *uuid.UUID, workshopID uuid.UUID, req CreateParticipantRequest) (*ParticipantResponse, error) {
	if _, err := s.workshops.FindByID(ctx, workshopID); err != nil {
		return nil, notFound(err, "workshop")
	}
	tt, err := s.ticketTypeOf(ctx, workshopID, req.TicketTypeID)
	if err != nil {
		return nil, err
	}

	email := model.NormalizeEmail(req.Email)
	p := &model.Participant{
		WorkshopID:   workshopID,
		TicketTypeID: tt.ID,
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Phone:        blankToNil(req.Phone),
		Occupation:   blankToNil(req.Occupation),
		Address:      blankToNil(req.Address),
		Company:      blankToNil(req.Company),
		Position:     blankToNil(req.Position),
		IsPaid:       req.IsPaid,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		taken, err := s.participants.EmailTaken(txCtx, workshopID, email, nil)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			return conflictf("%s", importer.MsgEmailTaken)
		}
		if err := s.participants.Create(txCtx, p); err != nil {
			return fmt.Errorf("failed to create participant: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionCreateParticipant, p.ID.String(), p.Email,
			map[string]string{"workshop_id": workshopID.String(), "ticket_code": p.TicketCode})
	})
	if err != nil {
		return nil, err
	}

	return s.GetParticipant(ctx, workshopID, p.ID)
}

func (s *participantService) UpdateParticipant(ctx context.Context, actorID *uuid.UUID, workshopID, id uuid.UUID, req UpdateParticipantRequest) (*ParticipantResponse, error) {
	p, err := s.findInWorkshop(ctx, workshopID, id)
	if err != nil {
		return nil, err
	}

	if req.TicketTypeID != nil {
		tt, err := s.ticketTypeOf(ctx, workshopID, *req.TicketTypeID)
		if err != nil {
			return nil, err
		}
		p.TicketTypeID = tt.ID
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		p.Phone = blankToNil(req.Phone)
	}
	if req.Occupation != nil {
		p.Occupation = blankToNil(req.Occupation)
	}
	if req.Address != nil {
		p.Address = blankToNil(req.Address)
	}
	if req.Company != nil {
		p.Company = blankToNil(req.Company)
	}
	if req.Position != nil {
		p.Position = blankToNil(req.Position)
	}
	if req.IsPaid != nil {
		p.IsPaid = *req.IsPaid
	}
	p.TicketType = nil

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if req.Email != nil {
			email := model.NormalizeEmail(*req.Email)
			taken, err := s.participants.EmailTaken(txCtx, workshopID, email, &p.ID)
			if err != nil {
				return fmt.Errorf("failed to check email: %w", err)
			}
			if taken {
				return conflictf("%s", importer.MsgEmailTaken)
			}
			p.Email = email
		}
		if err := s.participants.Update(txCtx, p); err != nil {
			return fmt.Errorf("failed to update participant: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateParticipant, p.ID.String(), p.Email, nil)
	})
	if err != nil {
		return nil, err
	}

	return s.GetParticipant(ctx, workshopID, id)
}

func (s *participantService) DeleteParticipant(ctx context.Context, actorID *uuid.UUID, workshopID, id uuid.UUID) error {
	p, err := s.findInWorkshop(ctx, workshopID, id)
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.participants.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete participant: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionDeleteParticipant, id.String(), p.Email, nil)
	})
}

func (s *participantService) TogglePaid(ctx context.Context, actorID *uuid.UUID, workshopID, id uuid.UUID) (*ParticipantResponse, error) {
	p, err := s.findInWorkshop(ctx, workshopID, id)
	if err != nil {
		return nil, err
	}
	paid := !p.IsPaid

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.participants.SetPaid(txCtx, id, paid); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionTogglePaid, id.String(), p.Email,
			map[string]bool{"is_paid": paid})
	})
	if err != nil {
		return nil, err
	}

	res, err := s.GetParticipant(ctx, workshopID, id)
	if err != nil {
		return nil, err
	}
	s.publish(EventParticipantPaid, res)
	return res, nil
}

// Import runs the bulk importer over an uploaded CSV or XLSX file. Row-level problems are
// reported in the result; only unreadable files and storage failures return an error.
// When the file becomes unreadable part way, the result of the rows already imported is
// returned together with a validation error.
func (s *participantService) Import(ctx context.Context, actorID *uuid.UUID, workshopID uuid.UUID, req ImportRequest) (*ImportResult, error) {
	w, err := s.workshops.FindByID(ctx, workshopID)
	if err != nil {
		return nil, notFound(err, "workshop")
	}
	if w.Status == model.WorkshopStatusCompleted || w.Status == model.WorkshopStatusCancelled {
		return nil, conflictf("workshop is %s and no longer accepts participants", w.Status)
	}
	if req.TicketTypeID != nil {
		if _, err := s.ticketTypeOf(ctx, workshopID, req.TicketTypeID.String()); err != nil {
			return nil, err
		}
	}

	src, err := importer.Open(req.Filename, bytes.NewReader(req.Content))
	if err != nil {
		if errors.Is(err, importer.ErrUnsupportedFormat) || errors.Is(err, importer.ErrMissingHeader) {
			return nil, validationf("%v", err)
		}
		return nil, validationf("unreadable file: %v", err)
	}
	defer src.Close()

	chunk := req.ChunkSize
	if chunk <= 0 {
		chunk = s.cfg.ChunkSize
	}

	im := importer.New(s.ticketTypes, s.participants, s.txManager, importer.Options{
		WorkshopID:   workshopID,
		TicketTypeID: req.TicketTypeID,
		ChunkSize:    chunk,
		OnRow: func(_ importer.Row, outcome importer.Outcome) {
			s.metrics.RecordImportRow(outcome.String())
		},
	})

	started := time.Now()
	summary, err := im.Import(ctx, src)
	if errors.Is(err, importer.ErrUnreadable) {
		s.metrics.RecordImportRun("failed")
		s.logger.Warn("Participant import stopped on unreadable file",
			zap.String("workshop_id", workshopID.String()),
			zap.Int("rows_processed", summary.Total),
			zap.Error(err))
		partial := &ImportResult{Summary: *summary, Errors: im.Errors()}
		if partial.Errors == nil {
			partial.Errors = []importer.RowError{}
		}
		return partial, validationf("import stopped after %d rows, which were kept: %v", summary.Total, err)
	}
	if err != nil {
		s.metrics.RecordImportRun("failed")
		s.logger.Error("Participant import aborted",
			zap.String("workshop_id", workshopID.String()),
			zap.Int("rows_processed", summary.Total),
			zap.Error(err))
		return nil, fmt.Errorf("import aborted after %d rows: %w", summary.Total, err)
	}
	s.metrics.RecordImportRun("completed")

	result := &ImportResult{Summary: *summary, Errors: im.Errors()}
	if result.Errors == nil {
		result.Errors = []importer.RowError{}
	}

	if s.archiver != nil {
		key := fmt.Sprintf("%s/%s-%s", workshopID, started.UTC().Format("20060102T150405Z"), filepath.Base(req.Filename))
		location, err := s.archiver.Archive(ctx, key, contentTypeOf(req.Filename), req.Content)
		if err != nil {
			// the participants are already committed; a missing archive copy is not fatal
			s.logger.Warn("Failed to archive import file", zap.String("key", key), zap.Error(err))
		} else {
			result.ArchiveAt = location
		}
	}

	details := map[string]any{
		"file":     filepath.Base(req.Filename),
		"total":    summary.Total,
		"imported": summary.Imported,
		"skipped":  summary.Skipped,
		"rejected": summary.Rejected,
	}
	if err := recordAudit(ctx, s.auditRepo, actorID, model.ActionImportParticipants, workshopID.String(), w.Title, details); err != nil {
		s.logger.Warn("Failed to audit import", zap.Error(err))
	}

	s.logger.Info("Participant import completed",
		zap.String("workshop_id", workshopID.String()),
		zap.Int("total", summary.Total),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
		zap.Int("rejected", summary.Rejected),
		zap.Duration("duration", time.Since(started)))
	s.publish(EventImportCompleted, map[string]any{"workshop_id": workshopID.String(), "summary": summary})

	return result, nil
}

func contentTypeOf(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

var exportHeader = []string{
	"ticket_code", "name", "email", "phone", "occupation", "address", "company", "position",
	"ticket_type", "is_paid", "is_checked_in", "checked_in_at",
}

func exportRow(p *model.Participant) []string {
	deref := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}
	ticket := ""
	if p.TicketType != nil {
		ticket = p.TicketType.Name
	}
	checkedInAt := ""
	if p.CheckedInAt != nil {
		checkedInAt = p.CheckedInAt.Format(timeLayout)
	}
	return []string{
		p.TicketCode, p.Name, p.Email, deref(p.Phone), deref(p.Occupation), deref(p.Address),
		deref(p.Company), deref(p.Position), ticket,
		yesNo(p.IsPaid), yesNo(p.IsCheckedIn), checkedInAt,
	}
}

// yesNo matches what the importer reads back as paid
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Export streams the workshop's participants as CSV or XLSX. The header row uses the
// importer's column names so an export can be re-imported into another workshop.
func (s *participantService) Export(ctx context.Context, workshopID uuid.UUID, format string, w io.Writer) error {
	if _, err := s.workshops.FindByID(ctx, workshopID); err != nil {
		return notFound(err, "workshop")
	}

	switch format {
	case ExportCSV, "":
		cw := csv.NewWriter(w)
		if err := cw.Write(exportHeader); err != nil {
			return err
		}
		err := s.participants.EachByWorkshop(ctx, workshopID, s.cfg.ChunkSize, func(batch []model.Participant) error {
			for i := range batch {
				if err := cw.Write(exportRow(&batch[i])); err != nil {
					return err
				}
			}
			cw.Flush()
			return cw.Error()
		})
		if err != nil {
			return fmt.Errorf("failed to export participants: %w", err)
		}
		cw.Flush()
		return cw.Error()

	case ExportXLSX:
		f := excelize.NewFile()
		defer f.Close()
		sheet := f.GetSheetName(0)
		sw, err := f.NewStreamWriter(sheet)
		if err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		if err := sw.SetRow("A1", toCells(exportHeader)); err != nil {
			return err
		}
		rowNum := 2
		err = s.participants.EachByWorkshop(ctx, workshopID, s.cfg.ChunkSize, func(batch []model.Participant) error {
			for i := range batch {
				cell, err := excelize.CoordinatesToCellName(1, rowNum)
				if err != nil {
					return err
				}
				if err := sw.SetRow(cell, toCells(exportRow(&batch[i]))); err != nil {
					return err
				}
				rowNum++
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to export participants: %w", err)
		}
		if err := sw.Flush(); err != nil {
			return err
		}
		_, err = f.WriteTo(w)
		return err

	default:
		return validationf("unsupported export format %q", format)
	}
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// QRCode renders the participant's ticket code as a PNG for scanning at the door
func (s *participantService) QRCode(ctx context.Context, workshopID, id uuid.UUID, size int) ([]byte, error) {
	p, err := s.findInWorkshop(ctx, workshopID, id)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	if size > 1024 {
		return nil, validationf("size must not exceed 1024, got %s", strconv.Itoa(size))
	}
	png, err := qrcode.Encode(p.TicketCode, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	return png, nil
}

package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"workshopdesk/internal/model"

	"github.com/google/uuid"
)

// DefaultChunkSize is the number of rows read and inserted per transaction
const DefaultChunkSize = 100

// Outcome classifies a single data row
type Outcome int

const (
	Skipped Outcome = iota
	Rejected
	Imported
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Rejected:
		return "rejected"
	case Imported:
		return "imported"
	default:
		return "unknown"
	}
}

// TicketTypes resolves ticket types of a workshop
type TicketTypes interface {
	IDByName(ctx context.Context, workshopID uuid.UUID, name string) (uuid.UUID, bool, error)
	DefaultID(ctx context.Context, workshopID uuid.UUID) (uuid.UUID, bool, error)
}

// Participants is the participant store the importer reads and writes
type Participants interface {
	ExistingEmails(ctx context.Context, workshopID uuid.UUID, emails []string) (map[string]bool, error)
	CreateBatch(ctx context.Context, participants []*model.Participant, batchSize int) error
}

// TxRunner runs fn in one database transaction carried by the context
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Options configure one import run
type Options struct {
	WorkshopID uuid.UUID
	// TicketTypeID, when set, is assigned to every imported row regardless of its ticket_type column
	TicketTypeID *uuid.UUID
	ChunkSize    int
	// OnRow is called once per data row after it has been classified
	OnRow func(row Row, outcome Outcome)
}

// Summary counts rows by outcome
type Summary struct {
	Total       int   `json:"total"`
	Imported    int   `json:"imported"`
	Skipped     int   `json:"skipped"`
	Rejected    int   `json:"rejected"`
	SkippedRows []int `json:"skipped_rows,omitempty"`
}

// Importer turns spreadsheet rows into participants of one workshop.
// An Importer is single-use and not safe for concurrent use.
type Importer struct {
	tickets      TicketTypes
	participants Participants
	tx           TxRunner
	opts         Options

	errs        []RowError
	seen        map[string]bool
	ticketNames map[string]ticketLookup
	defaultID   *ticketLookup
	records     []*model.Participant
}

type ticketLookup struct {
	id    uuid.UUID
	found bool
}

func New(tickets TicketTypes, participants Participants, tx TxRunner, opts Options) *Importer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Importer{
		tickets:      tickets,
		participants: participants,
		tx:           tx,
		opts:         opts,
		seen:         make(map[string]bool),
		ticketNames:  make(map[string]ticketLookup),
	}
}

// Errors returns the validation errors of rejected rows in row order
func (im *Importer) Errors() []RowError {
	return im.errs
}

// Records returns the participants inserted by Import in row order
func (im *Importer) Records() []*model.Participant {
	return im.records
}

// Import reads src to the end. Row validation failures are collected and never
// abort the run; read and storage failures do, and chunks already committed stay committed.
func (im *Importer) Import(ctx context.Context, src Source) (*Summary, error) {
	summary := &Summary{}
	chunk := make([]Row, 0, im.opts.ChunkSize)

	for {
		row, err := src.Next()
		if err != nil && !errors.Is(err, io.EOF) {
			return summary, err
		}
		if err == nil {
			chunk = append(chunk, row)
		}
		full := len(chunk) == im.opts.ChunkSize
		if (full || errors.Is(err, io.EOF)) && len(chunk) > 0 {
			if cerr := im.processChunk(ctx, chunk, summary); cerr != nil {
				return summary, cerr
			}
			chunk = chunk[:0]
		}
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
	}
}

func (im *Importer) processChunk(ctx context.Context, rows []Row, summary *Summary) error {
	var (
		batch    []*model.Participant
		errs     []RowError
		outcomes = make([]Outcome, len(rows))
	)

	err := im.tx.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := im.participants.ExistingEmails(txCtx, im.opts.WorkshopID, chunkEmails(rows))
		if err != nil {
			return fmt.Errorf("look up existing emails: %w", err)
		}

		// seen is only committed once the chunk is stored
		seen := make(map[string]bool)
		for i, row := range rows {
			outcome, record, rowErrs, err := im.classify(txCtx, row, existing, seen)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			switch outcome {
			case Rejected:
				errs = append(errs, rowErrs...)
			case Imported:
				seen[record.Email] = true
				batch = append(batch, record)
			}
		}

		if err := im.participants.CreateBatch(txCtx, batch, im.opts.ChunkSize); err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
		for email := range seen {
			im.seen[email] = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	im.errs = append(im.errs, errs...)
	im.records = append(im.records, batch...)
	for i, outcome := range outcomes {
		summary.Total++
		switch outcome {
		case Skipped:
			summary.Skipped++
			summary.SkippedRows = append(summary.SkippedRows, rows[i].Number)
		case Rejected:
			summary.Rejected++
		case Imported:
			summary.Imported++
		}
		if im.opts.OnRow != nil {
			im.opts.OnRow(rows[i], outcome)
		}
	}
	return nil
}

// classify runs skip, validation, ticket resolution and mapping for one row
func (im *Importer) classify(ctx context.Context, row Row, existing, chunkSeen map[string]bool) (Outcome, *model.Participant, []RowError, error) {
	if row.ReadErr != "" {
		return Rejected, nil, []RowError{{Row: row.Number, Field: "row", Message: row.ReadErr}}, nil
	}
	if row.Get(ColName) == "" || row.Get(ColEmail) == "" {
		return Skipped, nil, nil, nil
	}

	rowErrs := validateRow(row)
	email := model.NormalizeEmail(row.Get(ColEmail))
	if existing[email] || im.seen[email] || chunkSeen[email] {
		rowErrs = append(rowErrs, RowError{Row: row.Number, Field: ColEmail, Message: MsgEmailTaken})
	}
	if len(rowErrs) > 0 {
		return Rejected, nil, rowErrs, nil
	}

	ticketTypeID, ok, err := im.resolveTicketType(ctx, row.Get(ColTicketType))
	if err != nil {
		return Skipped, nil, nil, err
	}
	if !ok {
		return Skipped, nil, nil, nil
	}

	return Imported, &model.Participant{
		WorkshopID:   im.opts.WorkshopID,
		TicketTypeID: ticketTypeID,
		Name:         row.Get(ColName),
		Email:        email,
		Phone:        row.optional(ColPhone),
		Occupation:   row.optional(ColOccupation),
		Address:      row.optional(ColAddress),
		Company:      row.optional(ColCompany),
		Position:     row.optional(ColPosition),
		IsPaid:       ParsePaid(row.Get(ColIsPaid)),
		IsCheckedIn:  false,
	}, nil, nil
}

// resolveTicketType applies override, then exact name, then the workshop default
func (im *Importer) resolveTicketType(ctx context.Context, name string) (uuid.UUID, bool, error) {
	if im.opts.TicketTypeID != nil {
		return *im.opts.TicketTypeID, true, nil
	}

	if name != "" {
		hit, cached := im.ticketNames[name]
		if !cached {
			id, found, err := im.tickets.IDByName(ctx, im.opts.WorkshopID, name)
			if err != nil {
				return uuid.Nil, false, fmt.Errorf("resolve ticket type %q: %w", name, err)
			}
			hit = ticketLookup{id: id, found: found}
			im.ticketNames[name] = hit
		}
		if hit.found {
			return hit.id, true, nil
		}
	}

	if im.defaultID == nil {
		id, found, err := im.tickets.DefaultID(ctx, im.opts.WorkshopID)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("resolve default ticket type: %w", err)
		}
		im.defaultID = &ticketLookup{id: id, found: found}
	}
	return im.defaultID.id, im.defaultID.found, nil
}

func chunkEmails(rows []Row) []string {
	emails := make([]string, 0, len(rows))
	dedup := make(map[string]bool, len(rows))
	for _, row := range rows {
		raw := row.Get(ColEmail)
		if !utf8.ValidString(raw) {
			continue
		}
		email := model.NormalizeEmail(raw)
		if email == "" || dedup[email] {
			continue
		}
		dedup[email] = true
		emails = append(emails, email)
	}
	return emails
}

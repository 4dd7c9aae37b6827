package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"workshopdesk/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTickets struct {
	byName     map[string]uuid.UUID
	defaultID  *uuid.UUID
	nameCalls  int
	defaultErr error
}

func (f *fakeTickets) IDByName(_ context.Context, _ uuid.UUID, name string) (uuid.UUID, bool, error) {
	f.nameCalls++
	id, ok := f.byName[name]
	return id, ok, nil
}

func (f *fakeTickets) DefaultID(_ context.Context, _ uuid.UUID) (uuid.UUID, bool, error) {
	if f.defaultErr != nil {
		return uuid.Nil, false, f.defaultErr
	}
	if f.defaultID == nil {
		return uuid.Nil, false, nil
	}
	return *f.defaultID, true, nil
}

type fakeParticipants struct {
	stored     []*model.Participant
	preexists  map[string]bool
	batchSizes []int
	batchLens  []int
	failOn     int
}

func (f *fakeParticipants) ExistingEmails(_ context.Context, _ uuid.UUID, emails []string) (map[string]bool, error) {
	found := map[string]bool{}
	for _, e := range emails {
		if f.preexists[e] {
			found[e] = true
		}
		for _, p := range f.stored {
			if p.Email == e {
				found[e] = true
			}
		}
	}
	return found, nil
}

func (f *fakeParticipants) CreateBatch(_ context.Context, ps []*model.Participant, batchSize int) error {
	if f.failOn > 0 && len(f.batchLens)+1 == f.failOn {
		return errors.New("connection reset")
	}
	f.batchSizes = append(f.batchSizes, batchSize)
	f.batchLens = append(f.batchLens, len(ps))
	f.stored = append(f.stored, ps...)
	return nil
}

type passTx struct{ calls int }

func (t *passTx) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	t.calls++
	return fn(ctx)
}

var (
	workshopID = uuid.MustParse("7b0c7d0e-3a53-4a5e-9a57-000000000001")
	standardID = uuid.MustParse("7b0c7d0e-3a53-4a5e-9a57-0000000000a1")
	premiumID  = uuid.MustParse("7b0c7d0e-3a53-4a5e-9a57-0000000000b2")
)

func newTickets() *fakeTickets {
	def := standardID
	return &fakeTickets{
		byName:    map[string]uuid.UUID{"Standard": standardID, "Premium": premiumID},
		defaultID: &def,
	}
}

func run(t *testing.T, tickets *fakeTickets, store *fakeParticipants, opts Options, rows []map[string]string) (*Importer, *Summary) {
	t.Helper()
	opts.WorkshopID = workshopID
	im := New(tickets, store, &passTx{}, opts)
	summary, err := im.Import(context.Background(), NewSliceSource(rows))
	require.NoError(t, err)
	return im, summary
}

func TestParsePaid(t *testing.T) {
	cases := map[string]bool{
		"yes": true, "YES": true, "Yes": true, "true": true, "TRUE": true, "1": true,
		"no": false, "0": false, "": false, "y": false, "paid": false, "01": false,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParsePaid(raw), "raw %q", raw)
	}
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "ticket_type", NormalizeHeader(" Ticket Type "))
	assert.Equal(t, "is_paid", NormalizeHeader("Is-Paid"))
	assert.Equal(t, "email", NormalizeHeader("\ufeffEmail"))
	assert.Equal(t, "name", NormalizeHeader("NAME"))
	assert.Equal(t, "", NormalizeHeader("  "))
}

func TestImport_MapsFields(t *testing.T) {
	store := &fakeParticipants{}
	im, summary := run(t, newTickets(), store, Options{}, []map[string]string{
		{"name": " Ada Lovelace ", "email": " Ada@Example.COM ", "phone": "0901", "company": "", "is_paid": "Yes"},
	})

	assert.Equal(t, 1, summary.Imported)
	require.Len(t, store.stored, 1)
	p := store.stored[0]
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Equal(t, "ada@example.com", p.Email)
	require.NotNil(t, p.Phone)
	assert.Equal(t, "0901", *p.Phone)
	assert.Nil(t, p.Company)
	assert.Nil(t, p.Occupation)
	assert.True(t, p.IsPaid)
	assert.False(t, p.IsCheckedIn)
	assert.Equal(t, workshopID, p.WorkshopID)
	assert.Equal(t, standardID, p.TicketTypeID)
	assert.Empty(t, im.Errors())
	assert.Equal(t, store.stored, im.Records())
}

func TestImport_PaidValues(t *testing.T) {
	store := &fakeParticipants{}
	raw := []string{"yes", "TRUE", "1", "no", "0", ""}
	rows := make([]map[string]string, len(raw))
	for i, v := range raw {
		rows[i] = map[string]string{"name": "P", "email": fmt.Sprintf("p%d@example.com", i), "is_paid": v}
	}
	run(t, newTickets(), store, Options{}, rows)

	require.Len(t, store.stored, 6)
	got := make([]bool, 6)
	for i, p := range store.stored {
		got[i] = p.IsPaid
	}
	assert.Equal(t, []bool{true, true, true, false, false, false}, got)
}

func TestImport_DuplicateEmailInOneRun(t *testing.T) {
	store := &fakeParticipants{}
	im, summary := run(t, newTickets(), store, Options{}, []map[string]string{
		{"name": "First", "email": "a@x.com"},
		{"name": "Second", "email": "A@X.com"},
	})

	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, summary.Rejected)
	require.Len(t, store.stored, 1)
	assert.Equal(t, "First", store.stored[0].Name)
	assert.Equal(t, []RowError{{Row: 3, Field: "email", Message: MsgEmailTaken}}, im.Errors())
}

func TestImport_DuplicateAcrossChunks(t *testing.T) {
	store := &fakeParticipants{}
	im, summary := run(t, newTickets(), store, Options{ChunkSize: 1}, []map[string]string{
		{"name": "First", "email": "a@x.com"},
		{"name": "Second", "email": "a@x.com"},
	})
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, []RowError{{Row: 3, Field: "email", Message: MsgEmailTaken}}, im.Errors())
}

func TestImport_EmailAlreadyRegistered(t *testing.T) {
	store := &fakeParticipants{preexists: map[string]bool{"old@x.com": true}}
	im, summary := run(t, newTickets(), store, Options{}, []map[string]string{
		{"name": "Old", "email": "OLD@x.com"},
	})
	assert.Equal(t, 1, summary.Rejected)
	assert.Empty(t, store.stored)
	assert.Equal(t, []RowError{{Row: 2, Field: "email", Message: MsgEmailTaken}}, im.Errors())
}

func TestImport_MissingEmailSkipsButInvalidEmailRejects(t *testing.T) {
	store := &fakeParticipants{}
	im, summary := run(t, newTickets(), store, Options{}, []map[string]string{
		{"name": "No Email", "email": "   "},
		{"name": "", "email": "noname@x.com"},
		{"name": "Bad", "email": "not-an-email"},
	})

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, []int{2, 3}, summary.SkippedRows)
	assert.Equal(t, 1, summary.Rejected)
	assert.Empty(t, store.stored)
	assert.Equal(t, []RowError{{Row: 4, Field: "email", Message: "The email field must be a valid email address."}}, im.Errors())
}

func TestImport_CollectsEveryFieldError(t *testing.T) {
	im, _ := run(t, newTickets(), &fakeParticipants{}, Options{}, []map[string]string{
		{
			"name":    strings.Repeat("n", 256),
			"email":   "ok@x.com",
			"phone":   strings.Repeat("9", 21),
			"address": strings.Repeat("a", 1001),
		},
		{"name": "Fine", "email": "fine@x.com", "address": strings.Repeat("a", 1000)},
	})

	assert.Equal(t, []RowError{
		{Row: 2, Field: "name", Message: "The name field must not be greater than 255 characters."},
		{Row: 2, Field: "phone", Message: "The phone field must not be greater than 20 characters."},
		{Row: 2, Field: "address", Message: "The address field must not be greater than 1000 characters."},
	}, im.Errors())
}

func TestImport_RejectedRowDoesNotReserveEmail(t *testing.T) {
	store := &fakeParticipants{}
	_, summary := run(t, newTickets(), store, Options{}, []map[string]string{
		{"name": "Bad", "email": "a@x.com", "phone": strings.Repeat("1", 30)},
		{"name": "Good", "email": "a@x.com"},
	})
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, summary.Rejected)
	require.Len(t, store.stored, 1)
	assert.Equal(t, "Good", store.stored[0].Name)
}

func TestImport_TicketTypeResolution(t *testing.T) {
	tickets := newTickets()
	store := &fakeParticipants{}
	run(t, tickets, store, Options{}, []map[string]string{
		{"name": "A", "email": "a@x.com", "ticket_type": "Premium"},
		{"name": "B", "email": "b@x.com", "ticket_type": ""},
		{"name": "C", "email": "c@x.com", "ticket_type": "VIP"},
		{"name": "D", "email": "d@x.com", "ticket_type": "premium"},
		{"name": "E", "email": "e@x.com", "ticket_type": "Premium"},
	})

	require.Len(t, store.stored, 5)
	ids := []uuid.UUID{}
	for _, p := range store.stored {
		ids = append(ids, p.TicketTypeID)
	}
	assert.Equal(t, []uuid.UUID{premiumID, standardID, standardID, standardID, premiumID}, ids)
	// Premium, VIP, premium; the repeated Premium is served from cache
	assert.Equal(t, 3, tickets.nameCalls)
}

func TestImport_OverrideWins(t *testing.T) {
	store := &fakeParticipants{}
	override := premiumID
	run(t, newTickets(), store, Options{TicketTypeID: &override}, []map[string]string{
		{"name": "A", "email": "a@x.com", "ticket_type": "Standard"},
		{"name": "B", "email": "b@x.com"},
	})
	require.Len(t, store.stored, 2)
	assert.Equal(t, premiumID, store.stored[0].TicketTypeID)
	assert.Equal(t, premiumID, store.stored[1].TicketTypeID)
}

func TestImport_NoTicketTypeSkips(t *testing.T) {
	tickets := &fakeTickets{byName: map[string]uuid.UUID{}}
	store := &fakeParticipants{}
	im, summary := run(t, tickets, store, Options{}, []map[string]string{
		{"name": "A", "email": "a@x.com"},
	})
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, store.stored)
	assert.Empty(t, im.Errors())
}

func TestImport_ChunkingAndBatchSize(t *testing.T) {
	rows := sampleRows(250)

	store50 := &fakeParticipants{}
	im50, s50 := run(t, newTickets(), store50, Options{ChunkSize: 50}, rows)
	store100 := &fakeParticipants{}
	im100, s100 := run(t, newTickets(), store100, Options{}, rows)

	assert.Equal(t, []int{50, 50, 50, 50, 50}, store50.batchSizes)
	assert.Equal(t, []int{100, 100, 100}, store100.batchSizes)

	assert.Equal(t, s100.Imported, s50.Imported)
	assert.Equal(t, s100.Rejected, s50.Rejected)
	assert.Equal(t, s100.SkippedRows, s50.SkippedRows)
	assert.Equal(t, im100.Errors(), im50.Errors())
	assert.Equal(t, stripCodes(store100.stored), stripCodes(store50.stored))
	assert.Equal(t, 250, s50.Total)
}

func TestImport_StorageErrorAborts(t *testing.T) {
	store := &fakeParticipants{failOn: 2}
	im := New(newTickets(), store, &passTx{}, Options{WorkshopID: workshopID, ChunkSize: 2})
	summary, err := im.Import(context.Background(), NewSliceSource(sampleRows(6)))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert participants")
	assert.Len(t, store.stored, 2)
	assert.Equal(t, 2, summary.Total)
}

func TestImport_TicketLookupErrorAborts(t *testing.T) {
	tickets := &fakeTickets{byName: map[string]uuid.UUID{}, defaultErr: errors.New("db down")}
	im := New(tickets, &fakeParticipants{}, &passTx{}, Options{WorkshopID: workshopID})
	_, err := im.Import(context.Background(), NewSliceSource([]map[string]string{{"name": "A", "email": "a@x.com"}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestImport_OnRowObservesEveryRow(t *testing.T) {
	counts := map[Outcome]int{}
	run(t, newTickets(), &fakeParticipants{}, Options{OnRow: func(_ Row, o Outcome) { counts[o]++ }}, []map[string]string{
		{"name": "A", "email": "a@x.com"},
		{"name": "B", "email": "bad"},
		{"name": "", "email": ""},
	})
	assert.Equal(t, map[Outcome]int{Imported: 1, Rejected: 1, Skipped: 1}, counts)
}

func TestImport_RejectsInvalidUTF8(t *testing.T) {
	store := &fakeParticipants{}
	im, summary := run(t, newTickets(), store, Options{}, []map[string]string{
		{"name": "Jos\xe9 Garc\xeda", "email": "jose@example.com"},
		{"name": "Ana", "email": "ana@example.com", "company": "Caf\xe9 Ltd"},
		{"name": "Zoe", "email": "zoe@example.com", "company": "Café Ltd"},
	})

	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 2, summary.Rejected)
	require.Len(t, store.stored, 1)
	assert.Equal(t, "Café Ltd", *store.stored[0].Company)
	assert.Equal(t, []RowError{
		{Row: 2, Field: "name", Message: "The name field contains characters that are not valid UTF-8. Save the file as UTF-8 and try again."},
		{Row: 3, Field: "company", Message: "The company field contains characters that are not valid UTF-8. Save the file as UTF-8 and try again."},
	}, im.Errors())
}

func TestChunkEmails_LeavesOutInvalidUTF8(t *testing.T) {
	rows := []Row{
		{Number: 2, Values: map[string]string{"email": "Ana@Example.com"}},
		{Number: 3, Values: map[string]string{"email": "jos\xe9@example.com"}},
		{Number: 4, Values: map[string]string{"email": "ana@example.com"}},
		{Number: 5, Values: map[string]string{"email": ""}},
	}
	assert.Equal(t, []string{"ana@example.com"}, chunkEmails(rows))
}

// scriptedSource replays rows and then fails with err instead of io.EOF
type scriptedSource struct {
	rows []Row
	err  error
}

func (s *scriptedSource) Next() (Row, error) {
	if len(s.rows) == 0 {
		if s.err != nil {
			return Row{}, s.err
		}
		return Row{}, io.EOF
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r, nil
}

func (s *scriptedSource) Close() error { return nil }

func TestImport_UnparsableLineIsRejected(t *testing.T) {
	store := &fakeParticipants{}
	src := &scriptedSource{rows: []Row{
		{Number: 2, Values: map[string]string{"name": "Ann", "email": "ann@example.com"}},
		{Number: 3, ReadErr: "The row could not be read: extraneous or missing \" in quoted-field."},
		{Number: 4, Values: map[string]string{"name": "Bob", "email": "bob@example.com"}},
	}}
	im := New(newTickets(), store, &passTx{}, Options{WorkshopID: workshopID, ChunkSize: 2})
	summary, err := im.Import(context.Background(), src)

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, []RowError{{Row: 3, Field: "row", Message: "The row could not be read: extraneous or missing \" in quoted-field."}}, im.Errors())
}

func TestImport_UnreadableSourceKeepsCommittedChunks(t *testing.T) {
	store := &fakeParticipants{}
	rows := NewSliceSource(sampleRows(3)).rows
	src := &scriptedSource{rows: rows, err: fmt.Errorf("%w: xlsx row 5: zip: not a valid zip file", ErrUnreadable)}
	im := New(newTickets(), store, &passTx{}, Options{WorkshopID: workshopID, ChunkSize: 2})
	summary, err := im.Import(context.Background(), src)

	require.ErrorIs(t, err, ErrUnreadable)
	// the third row was buffered in an open chunk and never stored
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Imported)
	assert.Len(t, store.stored, 2)
}

// sampleRows mixes valid rows, in-run duplicates, blanks and invalid emails
func sampleRows(n int) []map[string]string {
	rows := make([]map[string]string, n)
	for i := range rows {
		switch {
		case i%17 == 5:
			rows[i] = map[string]string{"name": "", "email": ""}
		case i%13 == 7:
			rows[i] = map[string]string{"name": "Broken", "email": "broken-" + fmt.Sprint(i)}
		case i%11 == 3 && i > 20:
			// duplicates a row from the previous chunk window
			rows[i] = map[string]string{"name": "Dup", "email": fmt.Sprintf("user%d@example.com", i-20)}
		default:
			tt := ""
			if i%3 == 0 {
				tt = "Premium"
			}
			rows[i] = map[string]string{
				"name":        fmt.Sprintf("User %d", i),
				"email":       fmt.Sprintf("user%d@example.com", i),
				"ticket_type": tt,
				"is_paid":     []string{"yes", "no", "1"}[i%3],
			}
		}
	}
	return rows
}

func stripCodes(ps []*model.Participant) []model.Participant {
	out := make([]model.Participant, len(ps))
	for i, p := range ps {
		out[i] = *p
		out[i].TicketCode = ""
	}
	return out
}

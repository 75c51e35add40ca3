package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
	"github.com/noah-isme/gym-backoffice-api/internal/repository"
	appErrors "github.com/noah-isme/gym-backoffice-api/pkg/errors"
)

type fakeRegistry struct {
	clients     map[string]models.Client
	instructors map[string]models.Instructor
	modalities  map[string]models.Modality
	sites       map[string]models.Condominium
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		clients:     map[string]models.Client{},
		instructors: map[string]models.Instructor{"ins-x": {ID: "ins-x", Name: "Xavier", Active: true}},
		modalities:  map[string]models.Modality{"mod-1": {ID: "mod-1", Name: "Pilates", Active: true}},
		sites: map[string]models.Condominium{
			"site-1": {ID: "site-1", Name: "Jardim Europa", Active: true},
			"site-2": {ID: "site-2", Name: "Vila Nova", Active: true},
			"site-x": {ID: "site-x", Name: "Closed tower", Active: false},
		},
	}
}

func (f *fakeRegistry) addClient(id, name, document string) {
	f.clients[id] = models.Client{ID: id, Name: name, Document: document, Active: true}
}

func (f *fakeRegistry) FindClient(_ context.Context, id string) (*models.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f *fakeRegistry) FindCondominium(_ context.Context, id string) (*models.Condominium, error) {
	s, ok := f.sites[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f *fakeRegistry) FindModality(_ context.Context, id string) (*models.Modality, error) {
	m, ok := f.modalities[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

type fakeOfferingRepo struct {
	mu        sync.Mutex
	registry  *fakeRegistry
	offerings map[string]models.ClassOffering
	seq       int
	listErr   error
}

func newFakeOfferingRepo(registry *fakeRegistry) *fakeOfferingRepo {
	return &fakeOfferingRepo{registry: registry, offerings: map[string]models.ClassOffering{}}
}

func (f *fakeOfferingRepo) put(o models.ClassOffering) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offerings[o.ID] = o
}

func (f *fakeOfferingRepo) Save(_ context.Context, offering *models.ClassOffering, guard repository.OfferingGuard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	instructor, ok := f.registry.instructors[offering.InstructorID]
	if !ok {
		return repository.ErrInstructorNotFound
	}
	if guard != nil {
		var siblings []models.ClassOffering
		for _, o := range f.offerings {
			if o.InstructorID == offering.InstructorID && o.Active && o.ID != offering.ID {
				siblings = append(siblings, o)
			}
		}
		if err := guard(instructor, siblings); err != nil {
			return err
		}
	}
	if offering.ID == "" {
		f.seq++
		offering.ID = fmt.Sprintf("off-%d", f.seq)
	} else if _, ok := f.offerings[offering.ID]; !ok {
		return sql.ErrNoRows
	}
	f.offerings[offering.ID] = *offering
	return nil
}

func (f *fakeOfferingRepo) FindByID(_ context.Context, id string) (*models.ClassOffering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offerings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &o, nil
}

func (f *fakeOfferingRepo) FindDetail(ctx context.Context, id string) (*models.ClassOfferingDetail, error) {
	o, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ClassOfferingDetail{
		ClassOffering:  *o,
		ModalityName:   f.registry.modalities[o.ModalityID].Name,
		InstructorName: f.registry.instructors[o.InstructorID].Name,
	}, nil
}

func (f *fakeOfferingRepo) List(_ context.Context, filter models.ClassOfferingFilter) ([]models.ClassOfferingDetail, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.offerings))
	for id := range f.offerings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var all []models.ClassOfferingDetail
	for _, id := range ids {
		o := f.offerings[id]
		if filter.Active != nil && o.Active != *filter.Active {
			continue
		}
		if filter.CondominiumID != "" && (o.CondominiumID == nil || *o.CondominiumID != filter.CondominiumID) {
			continue
		}
		detail := models.ClassOfferingDetail{
			ClassOffering:  o,
			ModalityName:   f.registry.modalities[o.ModalityID].Name,
			InstructorName: f.registry.instructors[o.InstructorID].Name,
		}
		if o.CondominiumID != nil {
			name := f.registry.sites[*o.CondominiumID].Name
			detail.CondominiumName = &name
		}
		all = append(all, detail)
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(all) {
		return nil, len(all), nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

// fakeEnrollmentRepo serialises Enroll under a mutex the way the row lock does in PostgreSQL.
type fakeEnrollmentRepo struct {
	mu          sync.Mutex
	offerings   *fakeOfferingRepo
	registry    *fakeRegistry
	enrollments map[string]models.Enrollment
	order       []string
	seq         int
}

func newFakeEnrollmentRepo(offerings *fakeOfferingRepo, registry *fakeRegistry) *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{offerings: offerings, registry: registry, enrollments: map[string]models.Enrollment{}}
}

func (f *fakeEnrollmentRepo) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	offering, err := f.offerings.FindByID(ctx, enrollment.OfferingID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !offering.Active {
		return repository.ErrOfferingInactive
	}
	active := 0
	for _, e := range f.enrollments {
		if e.OfferingID != enrollment.OfferingID || !e.Active {
			continue
		}
		if e.ClientID == enrollment.ClientID && e.ParticipantKey == enrollment.ParticipantKey {
			return repository.ErrDuplicateEnrollment
		}
		active++
	}
	if active >= offering.Capacity {
		return repository.ErrCapacityExceeded
	}
	f.seq++
	enrollment.ID = fmt.Sprintf("enr-%d", f.seq)
	enrollment.Active = true
	enrollment.CreatedAt = time.Now().UTC()
	f.enrollments[enrollment.ID] = *enrollment
	f.order = append(f.order, enrollment.ID)
	return nil
}

func (f *fakeEnrollmentRepo) End(_ context.Context, id string, endDate *models.Date) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok || !e.Active {
		return nil, sql.ErrNoRows
	}
	e.Active = false
	e.EndDate = endDate
	now := time.Now().UTC()
	e.EndedAt = &now
	f.enrollments[id] = e
	return &e, nil
}

func (f *fakeEnrollmentRepo) detail(e models.Enrollment) models.EnrollmentDetail {
	client := f.registry.clients[e.ClientID]
	return models.EnrollmentDetail{Enrollment: e, ClientName: client.Name, ClientDocument: client.Document}
}

func (f *fakeEnrollmentRepo) FindByID(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := f.detail(e)
	return &d, nil
}

func (f *fakeEnrollmentRepo) ListActiveOn(_ context.Context, offeringID string, date models.Date) ([]models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EnrollmentDetail
	for _, id := range f.order {
		e := f.enrollments[id]
		if e.OfferingID == offeringID && e.ActiveOn(date) {
			out = append(out, f.detail(e))
		}
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) ListByOffering(_ context.Context, offeringID string, includeInactive bool) ([]models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EnrollmentDetail
	for _, id := range f.order {
		e := f.enrollments[id]
		if e.OfferingID == offeringID && (includeInactive || e.Active) {
			out = append(out, f.detail(e))
		}
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) ListParticipants(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	out, _ := f.ListByOffering(ctx, offeringID, false)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayName()) < strings.ToLower(out[j].DisplayName())
	})
	return out, nil
}

func (f *fakeEnrollmentRepo) CountActive(_ context.Context, offeringID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.enrollments {
		if e.OfferingID == offeringID && e.Active {
			n++
		}
	}
	return n, nil
}

type fakeRosterRepo struct {
	mu        sync.Mutex
	rosters   map[string]models.AttendanceRoster
	items     map[string][]models.AttendanceItem
	seq       int
	failDates map[string]error
	source    activeEnrollmentLister
}

func newFakeRosterRepo() *fakeRosterRepo {
	return &fakeRosterRepo{rosters: map[string]models.AttendanceRoster{}, items: map[string][]models.AttendanceItem{}, failDates: map[string]error{}}
}

func (f *fakeRosterRepo) insertItems(rosterID string, items []models.AttendanceItem) []models.AttendanceItem {
	var added []models.AttendanceItem
	for _, item := range items {
		duplicate := false
		for _, existing := range f.items[rosterID] {
			if item.EnrollmentID != nil && existing.EnrollmentID != nil && *existing.EnrollmentID == *item.EnrollmentID {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		f.seq++
		item.ID = fmt.Sprintf("item-%d", f.seq)
		item.RosterID = rosterID
		f.items[rosterID] = append(f.items[rosterID], item)
		added = append(added, item)
	}
	return added
}

func (f *fakeRosterRepo) Create(ctx context.Context, roster *models.AttendanceRoster) ([]models.AttendanceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failDates[roster.Date.String()]; err != nil {
		return nil, err
	}
	for _, r := range f.rosters {
		if r.OfferingID == roster.OfferingID && r.Date.Equal(roster.Date) {
			return nil, repository.ErrRosterExists
		}
	}
	var items []models.AttendanceItem
	if f.source != nil {
		active, err := f.source.ListActiveOn(ctx, roster.OfferingID, roster.Date)
		if err != nil {
			return nil, err
		}
		for _, enrollment := range active {
			items = append(items, models.NewAttendanceItem("", enrollment))
		}
	}
	f.seq++
	roster.ID = fmt.Sprintf("ros-%d", f.seq)
	f.rosters[roster.ID] = *roster
	return f.insertItems(roster.ID, items), nil
}

func (f *fakeRosterRepo) AddItems(_ context.Context, rosterID string, items []models.AttendanceItem) ([]models.AttendanceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertItems(rosterID, items), nil
}

func (f *fakeRosterRepo) FindByID(_ context.Context, id string) (*models.AttendanceRoster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rosters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (f *fakeRosterRepo) ExistingDates(_ context.Context, offeringID string, from, to models.Date) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := map[string]struct{}{}
	for _, r := range f.rosters {
		if r.OfferingID == offeringID && !r.Date.Before(from) && !r.Date.After(to) {
			set[r.Date.String()] = struct{}{}
		}
	}
	return set, nil
}

func (f *fakeRosterRepo) List(_ context.Context, offeringID string, from, to *models.Date) ([]models.AttendanceRosterSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AttendanceRosterSummary
	for _, r := range f.rosters {
		if r.OfferingID != offeringID {
			continue
		}
		if (from != nil && r.Date.Before(*from)) || (to != nil && r.Date.After(*to)) {
			continue
		}
		summary := models.AttendanceRosterSummary{AttendanceRoster: r, TotalItems: len(f.items[r.ID])}
		for _, item := range f.items[r.ID] {
			if item.Present {
				summary.TotalPresent++
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (f *fakeRosterRepo) ListItems(_ context.Context, rosterID string) ([]models.AttendanceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]models.AttendanceItem(nil), f.items[rosterID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].NameSnapshot) < strings.ToLower(out[j].NameSnapshot)
	})
	return out, nil
}

func (f *fakeRosterRepo) SaveMarks(_ context.Context, params repository.MarkParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	present := map[string]bool{}
	for _, id := range params.PresentItemIDs {
		present[id] = true
	}
	items := f.items[params.RosterID]
	for i := range items {
		items[i].Present = present[items[i].ID]
		if note, ok := params.Notes[items[i].ID]; ok {
			items[i].Note = note
		}
	}
	if params.GeneralNote != nil {
		r := f.rosters[params.RosterID]
		r.GeneralNote = *params.GeneralNote
		f.rosters[params.RosterID] = r
	}
	return nil
}

func (f *fakeRosterRepo) MarkAll(_ context.Context, rosterID string, present bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.items[rosterID]
	for i := range items {
		items[i].Present = present
	}
	return int64(len(items)), nil
}

type fakeBillingRepo struct {
	mu       sync.Mutex
	billable []models.BillableEnrollment
	charges  []models.MonthlyCharge
	failFor  map[string]error
}

func (f *fakeBillingRepo) ListBillable(_ context.Context, monthStart, monthEnd models.Date) ([]models.BillableEnrollment, error) {
	var out []models.BillableEnrollment
	for _, row := range f.billable {
		if row.StartDate.After(monthEnd) {
			continue
		}
		if row.EndDate == nil && !row.Active {
			continue
		}
		if row.EndDate != nil && row.EndDate.Before(monthStart) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeBillingRepo) ChargedClients(_ context.Context, year, month int) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := map[string]struct{}{}
	for _, c := range f.charges {
		if c.CompetenceYear == year && c.CompetenceMonth == month && c.Status != models.ChargeStatusCancelled {
			set[c.ClientID] = struct{}{}
		}
	}
	return set, nil
}

func (f *fakeBillingRepo) InsertCharge(_ context.Context, charge *models.MonthlyCharge) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[charge.ClientID]; err != nil {
		return false, err
	}
	for _, c := range f.charges {
		if c.ClientID == charge.ClientID && c.CompetenceYear == charge.CompetenceYear &&
			c.CompetenceMonth == charge.CompetenceMonth && c.Status != models.ChargeStatusCancelled {
			return false, nil
		}
	}
	charge.ID = fmt.Sprintf("chg-%d", len(f.charges)+1)
	f.charges = append(f.charges, *charge)
	return true, nil
}

func (f *fakeBillingRepo) ListCharges(_ context.Context, year, month int) ([]models.MonthlyCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MonthlyCharge
	for _, c := range f.charges {
		if c.CompetenceYear == year && c.CompetenceMonth == month {
			out = append(out, c)
		}
	}
	return out, nil
}

// memoryCache stores JSON payloads in a map.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type recordingHooks struct {
	mu       sync.Mutex
	enrolled []string
	ended    []string
	rosters  []string
}

func (h *recordingHooks) OnEnrolled(_ context.Context, e models.Enrollment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enrolled = append(h.enrolled, e.ID)
}

func (h *recordingHooks) OnEnrollmentEnded(_ context.Context, e models.Enrollment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended = append(h.ended, e.ID)
}

func (h *recordingHooks) OnRosterCreated(_ context.Context, r models.AttendanceRoster, _ int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rosters = append(h.rosters, r.ID)
}

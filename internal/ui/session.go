package ui

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cpmpazar/cpm-pazar/internal/contact"
	"github.com/cpmpazar/cpm-pazar/internal/listing"
	"github.com/cpmpazar/cpm-pazar/internal/llm"
)

// EventType identifies an event processed by the session worker.
type EventType string

const (
	EventOpenModal          EventType = "open_modal"
	EventCloseModal         EventType = "close_modal"
	EventUpdateDraft        EventType = "update_draft"
	EventSelectImage        EventType = "select_image"
	EventRequestDescription EventType = "request_description"
	EventGenerationComplete EventType = "generation_complete"
	EventSubmit             EventType = "submit"
	EventImageResolved      EventType = "image_resolved"
	EventSetSearchTerm      EventType = "set_search_term"
	EventNotice             EventType = "notice"
	EventAlert              EventType = "alert"
	EventTakeView           EventType = "take_view"
)

// ErrSessionClosed is returned when waiting on a session that has been stopped.
var ErrSessionClosed = errors.New("session closed")

// DraftFields are the text inputs of the create-listing form.
type DraftFields struct {
	Title       string
	Price       string
	Description string
	SellerName  string
}

// Event is a unit of work for the session worker.
type Event struct {
	Type EventType
	Done chan struct{} // Closed when processing is complete (for synchronous dispatch)

	Fields *DraftFields
	Image  *listing.ImageFile
	Text   string // Search term, generated description or notice

	// Task completion data. Epoch and Instance identify the modal the task was
	// started for; results for a modal that is gone are discarded.
	Epoch    uint64
	Instance uint64
	Draft    *listing.Draft
	ImageURL string
	Created  chan listing.Listing
	Finished chan struct{} // Closed once a generation result is handled, stale or not

	SubmitReply   chan SubmitResult
	DescribeReply chan (<-chan struct{})
	ViewReply     chan View
}

// SubmitResult tells the caller whether a submission passed validation.
// Created yields the listing once its image has been resolved.
type SubmitResult struct {
	Accepted bool
	Created  <-chan listing.Listing
}

// View is a consistent snapshot of everything the page renders.
type View struct {
	SessionID   string
	Listings    []listing.Listing
	Filtered    []listing.Listing
	EmptyState  listing.EmptyState
	SearchTerm  string
	Modal       ModalState
	Generation  GenerationState
	Draft       DraftFields
	HasPreview  bool
	PreviewName string
	Alert       string // Blocking message, shown once
	Notice      string // Non-blocking acknowledgement, shown once
}

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Describer llm.Describer
	Contacter contact.Contacter
}

// modal is the state of an open create-listing modal. instance changes each
// time the modal is opened; epoch additionally changes when the draft is reset.
type modal struct {
	instance   uint64
	epoch      uint64
	draft      listing.Draft
	generation GenerationState
	finished   chan struct{} // Set while generation is in flight
}

// Session is the state of one browser: the listing store, the search term
// and the create-listing modal.
//
// Threading model:
//   - A dedicated worker goroutine processes events sequentially; it is the
//     only writer of session state
//   - Slow work (ad-copy generation, image conversion) runs in task goroutines
//     that report back by sending an event; there is no cancellation
//   - mu guards the state against readers outside the worker (View, preview)
type Session struct {
	id        string
	store     *listing.Store
	describer llm.Describer
	contacter contact.Contacter

	mu     sync.Mutex
	modal  *modal // nil while closed
	seq    uint64
	alert  string
	notice string

	lastActive atomic.Int64

	inbox   chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}  // Closed when the worker exits
	wg      sync.WaitGroup // Worker
	tasks   sync.WaitGroup // In-flight async operations
}

// NewSession creates a session. StartWorker must be called before use.
func NewSession(id string, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		store:     listing.NewStore(),
		describer: deps.Describer,
		contacter: deps.Contacter,
		inbox:     make(chan Event, 10), // Buffered to avoid blocking
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
	}
	if s.contacter == nil {
		s.contacter = contact.Simulated{}
	}
	s.touch()
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Store returns the session's listing store.
func (s *Session) Store() *listing.Store {
	return s.store
}

// LastActive returns when the session last received an event.
func (s *Session) LastActive() time.Time {
	return time.UnixMilli(s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixMilli())
}

// Done is closed when the session is stopped.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// --- Worker methods ---

// StartWorker starts the session's event processing worker goroutine.
func (s *Session) StartWorker() {
	s.wg.Add(1)
	go s.runWorker()
}

func (s *Session) runWorker() {
	defer s.wg.Done()
	defer close(s.stopped)

	for {
		select {
		case <-s.ctx.Done():
			// Drain any remaining events and signal completion
			for {
				select {
				case ev := <-s.inbox:
					if ev.Done != nil {
						close(ev.Done)
					}
				default:
					return
				}
			}
		case ev := <-s.inbox:
			s.processEvent(ev)
		}
	}
}

func (s *Session) processEvent(ev Event) {
	defer func() {
		// Recover from any panics to keep the worker running
		if r := recover(); r != nil {
			log.Error().
				Str("sessionID", s.id).
				Str("event", string(ev.Type)).
				Interface("panic", r).
				Msg("recovered from panic in session worker")
		}
		if ev.Done != nil {
			close(ev.Done)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handleEvent(ev)
}

// Send queues an event for processing by the worker.
// This is non-blocking - it returns immediately after queuing.
func (s *Session) Send(ev Event) {
	if s.ctx.Err() != nil {
		if ev.Done != nil {
			close(ev.Done)
		}
		return
	}
	select {
	case s.inbox <- ev:
	case <-s.ctx.Done():
		if ev.Done != nil {
			close(ev.Done)
		}
	}
}

// SendSync queues an event and waits for it to be processed.
func (s *Session) SendSync(ev Event) {
	ev.Done = make(chan struct{})
	s.Send(ev)
	select {
	case <-ev.Done:
	case <-s.stopped:
		// Queued after the worker drained its inbox
	}
}

// Stop stops the worker and waits for it and all in-flight tasks to finish.
// Task results arriving after Stop are dropped.
func (s *Session) Stop() {
	s.cancel()
	s.wg.Wait()
	s.tasks.Wait()
}

// spawn runs fn outside the worker and delivers its result event back
// through the inbox. Called from the worker only.
func (s *Session) spawn(fn func(ctx context.Context) Event) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		s.Send(fn(s.ctx))
	}()
}

// --- Event handlers. Called from the worker with mu held. ---

func (s *Session) handleEvent(ev Event) {
	switch ev.Type {
	case EventOpenModal:
		s.handleOpenModal()
	case EventCloseModal:
		s.handleCloseModal()
	case EventUpdateDraft:
		s.handleUpdateDraft(ev.Fields)
	case EventSelectImage:
		s.handleSelectImage(ev.Image)
	case EventRequestDescription:
		s.handleRequestDescription(ev.DescribeReply)
	case EventGenerationComplete:
		s.handleGenerationComplete(ev)
	case EventSubmit:
		s.handleSubmit(ev.SubmitReply)
	case EventImageResolved:
		s.handleImageResolved(ev)
	case EventSetSearchTerm:
		s.store.SetSearchTerm(ev.Text)
	case EventNotice:
		s.notice = ev.Text
	case EventAlert:
		s.alert = ev.Text
	case EventTakeView:
		v := s.snapshot()
		s.alert = ""
		s.notice = ""
		if ev.ViewReply != nil {
			ev.ViewReply <- v
		}
	default:
		log.Warn().Str("sessionID", s.id).Str("event", string(ev.Type)).Msg("unknown session event")
	}
}

func (s *Session) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Session) handleOpenModal() {
	if s.modal != nil {
		return
	}
	seq := s.nextSeq()
	s.modal = &modal{instance: seq, epoch: seq}
	log.Debug().Str("sessionID", s.id).Uint64("instance", seq).Msg("modal opened")
}

func (s *Session) handleCloseModal() {
	if s.modal == nil {
		return
	}
	log.Debug().
		Str("sessionID", s.id).
		Uint64("instance", s.modal.instance).
		Stringer("generation", s.modal.generation).
		Msg("modal closed")
	s.modal = nil
}

func (s *Session) handleUpdateDraft(f *DraftFields) {
	if s.modal == nil || f == nil {
		return
	}
	s.modal.draft.Title = f.Title
	s.modal.draft.Price = f.Price
	s.modal.draft.Description = f.Description
	s.modal.draft.SellerName = f.SellerName
}

func (s *Session) handleSelectImage(img *listing.ImageFile) {
	if s.modal == nil || img == nil {
		return
	}
	s.modal.draft.Image = img
	log.Debug().Str("sessionID", s.id).Str("file", img.Name).Int("bytes", len(img.Data)).Msg("image selected")
}

func (s *Session) handleRequestDescription(reply chan (<-chan struct{})) {
	respond := func(ch <-chan struct{}) {
		if reply != nil {
			reply <- ch
		}
	}

	m := s.modal
	if m == nil {
		respond(nil)
		return
	}
	if m.generation == GenerationInFlight {
		// The generate action is disabled, not queued, while a request runs
		log.Debug().Str("sessionID", s.id).Msg("ignoring generate request while in flight")
		respond(m.finished)
		return
	}
	if !m.draft.CanGenerate() {
		s.alert = MsgAIPrerequisites
		respond(nil)
		return
	}

	finished := make(chan struct{})
	m.generation = GenerationInFlight
	m.finished = finished
	epoch := m.epoch
	title, price := m.draft.Title, m.draft.Price
	features := m.draft.Description
	if features == "" {
		features = llm.DefaultFeaturesHint
	}

	describer := s.describer
	s.spawn(func(ctx context.Context) Event {
		text := llm.MsgAPIKeyMissing
		if describer != nil {
			text = describer.Generate(ctx, title, price, features)
		}
		return Event{Type: EventGenerationComplete, Epoch: epoch, Text: text, Finished: finished}
	})
	respond(finished)
}

func (s *Session) handleGenerationComplete(ev Event) {
	if ev.Finished != nil {
		defer close(ev.Finished)
	}
	if s.modal == nil || s.modal.epoch != ev.Epoch {
		log.Debug().Str("sessionID", s.id).Uint64("epoch", ev.Epoch).Msg("discarding stale generation result")
		return
	}
	s.modal.draft.Description = ev.Text
	s.modal.generation = GenerationIdle
	s.modal.finished = nil
}

func (s *Session) handleSubmit(reply chan SubmitResult) {
	respond := func(r SubmitResult) {
		if reply != nil {
			reply <- r
		}
	}

	m := s.modal
	if m == nil {
		respond(SubmitResult{})
		return
	}
	if !m.draft.CanSubmit() {
		s.alert = MsgRequiredFields
		respond(SubmitResult{})
		return
	}

	draft := m.draft
	instance := m.instance

	// Reset the form right away; the listing is built once the image is resolved
	m.draft = listing.Draft{}
	m.epoch = s.nextSeq()
	m.generation = GenerationIdle
	m.finished = nil

	created := make(chan listing.Listing, 1)
	s.spawn(func(ctx context.Context) Event {
		return Event{
			Type:     EventImageResolved,
			Instance: instance,
			Draft:    &draft,
			ImageURL: listing.ResolveImage(ctx, draft.Image),
			Created:  created,
		}
	})

	respond(SubmitResult{Accepted: true, Created: created})
}

func (s *Session) handleImageResolved(ev Event) {
	if ev.Draft == nil {
		return
	}

	// The listing belongs to the store, so it is created even if the modal was
	// closed in the meantime. Only the modal it was submitted from is closed.
	// Together with the ResolveImage task this is Store.CreateListing split
	// around the worker.
	l := s.store.Insert(*ev.Draft, ev.ImageURL)
	if s.modal != nil && s.modal.instance == ev.Instance {
		s.modal = nil
	}

	if ev.Created != nil {
		ev.Created <- l
		close(ev.Created)
	}
}

// snapshot builds a View. Caller must hold mu.
func (s *Session) snapshot() View {
	v := View{
		SessionID:  s.id,
		Listings:   s.store.Listings(),
		Filtered:   s.store.Filtered(),
		EmptyState: s.store.EmptyState(),
		SearchTerm: s.store.SearchTerm(),
		Modal:      ModalClosed,
		Generation: GenerationIdle,
		Alert:      s.alert,
		Notice:     s.notice,
	}
	if m := s.modal; m != nil {
		v.Modal = ModalOpen
		v.Generation = m.generation
		v.Draft = DraftFields{
			Title:       m.draft.Title,
			Price:       m.draft.Price,
			Description: m.draft.Description,
			SellerName:  m.draft.SellerName,
		}
		if m.draft.Image != nil {
			v.HasPreview = true
			v.PreviewName = m.draft.Image.Name
		}
	}
	return v
}

// --- Public operations. Safe to call from any goroutine. ---

// OpenModal opens the create-listing modal with an empty draft.
func (s *Session) OpenModal() {
	s.touch()
	s.SendSync(Event{Type: EventOpenModal})
}

// CloseModal closes the modal and discards the draft. Results of requests
// still in flight for it are ignored when they arrive.
func (s *Session) CloseModal() {
	s.touch()
	s.SendSync(Event{Type: EventCloseModal})
}

// UpdateDraft replaces the text fields of the draft.
func (s *Session) UpdateDraft(f DraftFields) {
	s.touch()
	s.SendSync(Event{Type: EventUpdateDraft, Fields: &f})
}

// SelectImage attaches a locally chosen image to the draft.
func (s *Session) SelectImage(img *listing.ImageFile) {
	s.touch()
	s.SendSync(Event{Type: EventSelectImage, Image: img})
}

// RequestDescription starts ad-copy generation for the draft. The returned
// channel is closed once the result has been handled; it is nil if nothing
// was started. A request made while one is running returns the running one.
func (s *Session) RequestDescription() <-chan struct{} {
	s.touch()
	reply := make(chan (<-chan struct{}), 1)
	s.SendSync(Event{Type: EventRequestDescription, DescribeReply: reply})
	select {
	case ch := <-reply:
		return ch
	default:
		return nil
	}
}

// WaitForDescription blocks until a generation started by RequestDescription
// has been applied to the draft, or discarded because the draft is gone.
func (s *Session) WaitForDescription(ctx context.Context, finished <-chan struct{}) error {
	if finished == nil {
		return nil
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Done():
		return ErrSessionClosed
	}
}

// Submit validates the draft and starts creating the listing.
func (s *Session) Submit() SubmitResult {
	s.touch()
	reply := make(chan SubmitResult, 1)
	s.SendSync(Event{Type: EventSubmit, SubmitReply: reply})
	select {
	case r := <-reply:
		return r
	default:
		// Session stopped before the event was processed
		return SubmitResult{}
	}
}

// WaitForListing blocks until an accepted submission has produced its listing.
func (s *Session) WaitForListing(ctx context.Context, r SubmitResult) (listing.Listing, error) {
	if !r.Accepted || r.Created == nil {
		return listing.Listing{}, errors.New("submission was not accepted")
	}
	select {
	case l, ok := <-r.Created:
		if !ok {
			return listing.Listing{}, ErrSessionClosed
		}
		return l, nil
	case <-ctx.Done():
		return listing.Listing{}, ctx.Err()
	case <-s.Done():
		return listing.Listing{}, ErrSessionClosed
	}
}

// SetSearchTerm replaces the active filter.
func (s *Session) SetSearchTerm(term string) {
	s.touch()
	s.SendSync(Event{Type: EventSetSearchTerm, Text: term})
}

// ContactSeller runs the contact action for a listing and queues the
// acknowledgement as a notice. It returns false if the listing is unknown.
func (s *Session) ContactSeller(ctx context.Context, id string) bool {
	s.touch()
	l, ok := s.store.Get(id)
	if !ok {
		s.SendSync(Event{Type: EventNotice, Text: MsgListingNotFound})
		return false
	}

	ack, err := s.contacter.ContactSeller(ctx, l)
	if err != nil {
		log.Warn().Err(err).Str("listingID", id).Msg("contact seller failed")
		ack, _ = contact.Simulated{}.ContactSeller(ctx, l)
	}
	s.SendSync(Event{Type: EventNotice, Text: ack})
	return true
}

// ShowAlert queues a blocking message for the next render.
func (s *Session) ShowAlert(text string) {
	s.SendSync(Event{Type: EventAlert, Text: text})
}

// TakeView returns a snapshot and clears the one-shot alert and notice.
func (s *Session) TakeView() View {
	reply := make(chan View, 1)
	s.SendSync(Event{Type: EventTakeView, ViewReply: reply})
	select {
	case v := <-reply:
		return v
	default:
		return s.View()
	}
}

// View returns a snapshot without consuming the alert or notice.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// PreviewImage returns the image selected in the open modal, if any.
func (s *Session) PreviewImage() *listing.ImageFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modal == nil {
		return nil
	}
	return s.modal.draft.Image
}

package participant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"clickerexam/internal/domain"
	"clickerexam/internal/store"
)

// deviceTag matches hardware identifiers of the form d<digits>_<suffix> that
// some receivers send in place of the clicker tag.
var deviceTag = regexp.MustCompile(`^d(\d+)_.+$`)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Identity is what a live response carries to identify its sender.
type Identity struct {
	ParticipantID *int64
	ClickerID     string
}

// Resolver maps live-response identities of one exam to participants. It keeps
// a per-batch cache so repeated tags hit the store once. Not safe for
// concurrent use.
type Resolver struct {
	repo   store.Repository
	examID int64

	byID        map[int64]*domain.Participant
	byTag       map[string]*domain.Participant
	provisioned int
}

func NewResolver(repo store.Repository, examID int64) *Resolver {
	return &Resolver{
		repo:   repo,
		examID: examID,
		byID:   make(map[int64]*domain.Participant),
		byTag:  make(map[string]*domain.Participant),
	}
}

// Provisioned reports how many participants were auto-created.
func (r *Resolver) Provisioned() int { return r.provisioned }

// Resolve tries, in order: explicit id, exact clicker tag, the numeric part of a
// device tag, and finally auto-provisioning from the tag. Every match is put on
// the exam roster. A nil participant with a nil error means the identity was
// empty and could not be resolved.
func (r *Resolver) Resolve(ctx context.Context, id Identity) (*domain.Participant, error) {
	tag := strings.TrimSpace(id.ClickerID)

	if id.ParticipantID != nil && *id.ParticipantID > 0 {
		if p, ok := r.byID[*id.ParticipantID]; ok {
			return p, nil
		}
		p, err := r.repo.GetParticipant(ctx, *id.ParticipantID)
		switch {
		case err == nil:
			return r.admit(ctx, p, "")
		case !errors.Is(err, domain.ErrParticipantNotFound):
			return nil, err
		}
	}

	if tag == "" {
		return nil, nil
	}
	if p, ok := r.byTag[tag]; ok {
		return p, nil
	}

	p, err := r.lookupTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	if p == nil {
		if m := deviceTag.FindStringSubmatch(tag); m != nil {
			if p, err = r.lookupTag(ctx, m[1]); err != nil {
				return nil, err
			}
		}
	}
	if p == nil {
		if p, err = r.provision(ctx, tag); err != nil {
			return nil, err
		}
	}
	return r.admit(ctx, p, tag)
}

func (r *Resolver) lookupTag(ctx context.Context, tag string) (*domain.Participant, error) {
	p, err := r.repo.FindParticipantByClicker(ctx, tag)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, domain.ErrParticipantNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("lookup clicker %q: %w", tag, err)
}

func (r *Resolver) admit(ctx context.Context, p *domain.Participant, tag string) (*domain.Participant, error) {
	if err := r.repo.EnsureRoster(ctx, r.examID, p.ID); err != nil {
		return nil, fmt.Errorf("ensure roster: %w", err)
	}
	r.byID[p.ID] = p
	if tag != "" {
		r.byTag[tag] = p
	}
	return p, nil
}

// provision creates a placeholder participant for an unknown tag. A concurrent
// batch may win the clicker tag first, in which case its row is reused.
func (r *Resolver) provision(ctx context.Context, tag string) (*domain.Participant, error) {
	p := &domain.Participant{
		Name:      "Clicker " + tag,
		Email:     PlaceholderEmail(tag),
		ClickerID: tag,
	}
	err := r.repo.CreateParticipant(ctx, p)
	if errors.Is(err, domain.ErrDuplicateEmail) {
		p.Email = ""
		err = r.repo.CreateParticipant(ctx, p)
	}
	if errors.Is(err, domain.ErrDuplicateClicker) {
		existing, lookupErr := r.lookupTag(ctx, tag)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("provision participant %q: %w", tag, err)
	}
	r.provisioned++
	return p, nil
}

// PlaceholderEmail derives the address given to auto-provisioned participants.
func PlaceholderEmail(tag string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(tag), "-"), "-")
	if slug == "" {
		slug = "device"
	}
	return "clicker-" + slug + "@live.local"
}

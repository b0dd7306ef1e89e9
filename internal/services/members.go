package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/apperr"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/types"
)

type RegisterMemberInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	FullName        string `json:"full_name"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	MembershipType  string `json:"membership_type"`
	MaxBooksAllowed int    `json:"max_books_allowed"`
}

// MemberService handles registration and membership administration. It never
// touches the loan-slot or fine counters; those belong to the coordinator.
type MemberService interface {
	Register(ctx context.Context, input RegisterMemberInput) (*types.Member, error)
	GetByID(ctx context.Context, memberID uuid.UUID) (*types.Member, error)
	GetByMembershipNumber(ctx context.Context, number string) (*types.Member, error)
	Suspend(ctx context.Context, memberID uuid.UUID) error
	Reactivate(ctx context.Context, memberID uuid.UUID) error
}

type memberService struct {
	db           *gorm.DB
	log          *logger.Logger
	profileRepo  repos.ProfileRepo
	memberRepo   repos.MemberRepo
	activityRepo repos.ActivityEventRepo
	now          func() time.Time
}

func NewMemberService(
	db *gorm.DB,
	baseLog *logger.Logger,
	profileRepo repos.ProfileRepo,
	memberRepo repos.MemberRepo,
	activityRepo repos.ActivityEventRepo,
) MemberService {
	serviceLog := baseLog.With("service", "MemberService")
	return &memberService{
		db:           db,
		log:          serviceLog,
		profileRepo:  profileRepo,
		memberRepo:   memberRepo,
		activityRepo: activityRepo,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Register creates the profile and member rows together. Membership runs one
// year from joining; librarians extend it out of band.
func (ms *memberService) Register(ctx context.Context, input RegisterMemberInput) (*types.Member, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperr.Validation("an email is required")
	}
	if input.Password == "" {
		return nil, apperr.Validation("a password is required")
	}
	if strings.TrimSpace(input.FullName) == "" {
		return nil, apperr.Validation("a full name is required")
	}

	exists, err := ms.profileRepo.EmailExists(ctx, nil, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, apperr.Validation("email %s is already in use", email)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	maxBooks := input.MaxBooksAllowed
	if maxBooks <= 0 {
		maxBooks = 5
	}

	now := ms.now()
	var member *types.Member
	err = runInTx(ctx, ms.db, func(dbtx *gorm.DB) error {
		profile := &types.Profile{
			ID:       uuid.New(),
			Email:    email,
			Password: string(hashed),
			FullName: strings.TrimSpace(input.FullName),
			Phone:    strings.TrimSpace(input.Phone),
			Address:  strings.TrimSpace(input.Address),
			Role:     types.RoleMember,
		}
		if _, err := ms.profileRepo.Create(ctx, dbtx, []*types.Profile{profile}); err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}

		member = &types.Member{
			ID:               uuid.New(),
			ProfileID:        profile.ID,
			MembershipNumber: newMembershipNumber(now),
			MembershipType:   strings.TrimSpace(input.MembershipType),
			Status:           types.MemberStatusActive,
			MaxBooksAllowed:  maxBooks,
			JoinDate:         now,
			ExpiryDate:       now.AddDate(1, 0, 0),
		}
		if _, err := ms.memberRepo.Create(ctx, dbtx, []*types.Member{member}); err != nil {
			return fmt.Errorf("creating member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ms.recordRegistration(ctx, member)
	ms.log.Info("Member registered", "member_id", member.ID, "membership_number", member.MembershipNumber)
	return member, nil
}

func (ms *memberService) GetByID(ctx context.Context, memberID uuid.UUID) (*types.Member, error) {
	if memberID == uuid.Nil {
		return nil, apperr.Validation("missing member id")
	}
	member, err := ms.memberRepo.GetByID(ctx, nil, memberID)
	if err != nil {
		return nil, fmt.Errorf("loading member: %w", err)
	}
	if member == nil {
		return nil, apperr.NotFound("member %s not found", memberID)
	}
	return member, nil
}

// GetByMembershipNumber resolves the number printed on a library card, the
// identifier staff actually see at the desk.
func (ms *memberService) GetByMembershipNumber(ctx context.Context, number string) (*types.Member, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, apperr.Validation("a membership number is required")
	}
	member, err := ms.memberRepo.GetByMembershipNumber(ctx, nil, number)
	if err != nil {
		return nil, fmt.Errorf("loading member: %w", err)
	}
	if member == nil {
		return nil, apperr.NotFound("no member with number %s", number)
	}
	return member, nil
}

func (ms *memberService) Suspend(ctx context.Context, memberID uuid.UUID) error {
	if memberID == uuid.Nil {
		return apperr.Validation("missing member id")
	}
	return ms.memberRepo.UpdateStatus(ctx, nil, memberID, types.MemberStatusSuspended)
}

func (ms *memberService) Reactivate(ctx context.Context, memberID uuid.UUID) error {
	if memberID == uuid.Nil {
		return apperr.Validation("missing member id")
	}
	return ms.memberRepo.UpdateStatus(ctx, nil, memberID, types.MemberStatusActive)
}

func (ms *memberService) recordRegistration(ctx context.Context, member *types.Member) {
	raw, _ := json.Marshal(map[string]any{"membership_number": member.MembershipNumber})
	event := &types.ActivityEvent{
		ID:        uuid.New(),
		Type:      types.ActivityRegistration,
		MemberID:  &member.ID,
		Data:      datatypes.JSON(raw),
		CreatedAt: ms.now(),
	}
	if _, err := ms.activityRepo.Create(ctx, nil, []*types.ActivityEvent{event}); err != nil {
		ms.log.Warn("Failed to record registration activity", "member_id", member.ID, "error", err)
	}
}

// newMembershipNumber yields e.g. LIB-20260831-1A2B3C. The uuid suffix keeps
// it unique without a counter table.
func newMembershipNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("LIB-%s-%s", now.Format("20060102"), suffix)
}

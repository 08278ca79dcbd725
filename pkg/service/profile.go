package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/zfogg/circle/cli/pkg/api"
	"github.com/zfogg/circle/cli/pkg/auth"
	"github.com/zfogg/circle/cli/pkg/cache"
	"github.com/zfogg/circle/cli/pkg/db"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/models"
	"github.com/zfogg/circle/cli/pkg/poll"
	"github.com/zfogg/circle/cli/pkg/resource"
	"github.com/zfogg/circle/cli/pkg/storage"
)

// MaxUsernameLength is the longest accepted username
const MaxUsernameLength = 30

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._]+$`)

// ValidateUsername trims name and checks its length and alphabet
func ValidateUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", clierrors.ValidationError("username", "cannot be empty")
	case len(name) > MaxUsernameLength:
		return "", clierrors.ValidationError("username", "must be at most 30 characters")
	case !usernamePattern.MatchString(name):
		return "", clierrors.ValidationError("username", "may only contain letters, digits, '.' and '_'")
	}
	return name, nil
}

// MetadataUpdater writes account metadata on the auth service
type MetadataUpdater interface {
	UpdateMetadata(ctx context.Context, accessToken string, data map[string]interface{}) (*auth.User, error)
}

// Activity kinds
const (
	ActivityEducation = "education"
	ActivityJob       = "job"
	ActivityOther     = "other"
)

// Activities groups a user's profile activities
type Activities struct {
	Education []models.EducationActivity `json:"education"`
	Jobs      []models.JobActivity       `json:"jobs"`
	Other     []models.OtherActivity     `json:"other"`
}

// ActivityInput describes a new activity. Title is the institution,
// company or title depending on Kind. Image is optional.
type ActivityInput struct {
	Kind           string
	Title          string
	Specialization string
	DomainID       int
	FunctionID     int
	OccupationID   int
	StartDate      time.Time
	EndDate        *time.Time
	Description    string
	Image          string
}

// Validate checks the fields required by the activity kind
func (in ActivityInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return clierrors.ValidationError("title", "is required")
	}
	if in.DomainID <= 0 {
		return clierrors.ValidationError("domain", "must be selected")
	}
	switch in.Kind {
	case ActivityEducation, ActivityOther:
	case ActivityJob:
		if in.FunctionID <= 0 {
			return clierrors.ValidationError("function", "must be selected")
		}
		if in.OccupationID <= 0 {
			return clierrors.ValidationError("occupation", "must be selected")
		}
	default:
		return clierrors.ValidationError("kind", "must be education, job or other")
	}
	if in.StartDate.IsZero() {
		return clierrors.ValidationError("start date", "is required")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return clierrors.ValidationError("end date", "is before the start date")
	}
	return nil
}

// ProfileService reads profiles and edits the user's own profile
type ProfileService struct {
	db          *db.Client
	api         *api.Client
	accounts    MetadataUpdater
	accessToken string
	uploader    Uploader
	lookups     *LookupService
	userID      string
	profiles    *resource.Resource[*models.UserProfile]
}

// ProfileDeps are the collaborators of a ProfileService
type ProfileDeps struct {
	DB          *db.Client
	API         *api.Client
	Accounts    MetadataUpdater
	AccessToken string
	Uploader    Uploader
	Lookups     *LookupService
	UserID      string
}

// NewProfileService creates a profile service whose profiles are cached
// in c and polled every interval while watched.
func NewProfileService(deps ProfileDeps, c *cache.Cache[*models.UserProfile], interval time.Duration, opts ...resource.Option) *ProfileService {
	ps := &ProfileService{
		db:          deps.DB,
		api:         deps.API,
		accounts:    deps.Accounts,
		accessToken: deps.AccessToken,
		uploader:    deps.Uploader,
		lookups:     deps.Lookups,
		userID:      deps.UserID,
	}
	ps.profiles = resource.New[*models.UserProfile]("profile", c,
		resource.FetchFunc[*models.UserProfile](ps.fetchProfile), interval, opts...)
	return ps
}

// Profile returns a profile; an empty id means the user's own
func (ps *ProfileService) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	id, err := ps.resolve(userID)
	if err != nil {
		return nil, err
	}
	return ps.profiles.Load(ctx, ProfileKey(id))
}

// Cached returns a profile even when it is stale
func (ps *ProfileService) Cached(userID string) (*models.UserProfile, bool) {
	id, err := ps.resolve(userID)
	if err != nil {
		return nil, false
	}
	return ps.profiles.Peek(ProfileKey(id))
}

// Watch delivers a profile now and after every poll
func (ps *ProfileService) Watch(ctx context.Context, userID string, l poll.Listener[*models.UserProfile]) (*poll.Handle, error) {
	id, err := ps.resolve(userID)
	if err != nil {
		return nil, err
	}
	return ps.profiles.Watch(ctx, ProfileKey(id), l), nil
}

// UpdateUsername validates and stores a new username
func (ps *ProfileService) UpdateUsername(ctx context.Context, name string) (string, error) {
	if err := requireUser(ps.userID); err != nil {
		return "", err
	}
	name, err := ValidateUsername(name)
	if err != nil {
		return "", err
	}

	var taken []models.User
	err = ps.db.From(models.TableUser).
		Select("id").
		Eq("username", name).
		Neq("id", ps.userID).
		Limit(1).
		Execute(ctx, &taken)
	if err != nil {
		return "", err
	}
	if len(taken) > 0 {
		return "", clierrors.ConflictError("Username '" + name + "' is already taken")
	}

	if err := ps.updateUser(ctx, map[string]interface{}{"username": name}); err != nil {
		return "", err
	}
	logger.Info("Username updated", "username", name)
	return name, nil
}

// UpdateAvatar sets the profile image from a URL, a file path, base64 or
// a data URI, and returns the stored URL.
func (ps *ProfileService) UpdateAvatar(ctx context.Context, source string) (string, error) {
	if err := requireUser(ps.userID); err != nil {
		return "", err
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return "", clierrors.ValidationError("avatar", "is required")
	}

	url, uploaded := source, false
	if !isHTTPURL(source) {
		if ps.uploader == nil {
			return "", clierrors.ValidationError("avatar", "uploads are not configured")
		}
		res, err := ps.uploader.UploadImage(ctx, storage.FolderAvatars, ps.userID, source)
		if err != nil {
			return "", err
		}
		url, uploaded = res.URL, true
	}

	if err := ps.updateUser(ctx, map[string]interface{}{"profile_image": url}); err != nil {
		if uploaded {
			discardUpload(ctx, ps.uploader, url)
		}
		return "", err
	}
	return url, nil
}

// Activities lists a user's activities, most recent first
func (ps *ProfileService) Activities(ctx context.Context, userID string) (*Activities, error) {
	id, err := ps.resolve(userID)
	if err != nil {
		return nil, err
	}

	var a Activities
	queries := []struct {
		table  string
		target interface{}
	}{
		{models.TableEducationActivity, &a.Education},
		{models.TableJobActivity, &a.Jobs},
		{models.TableOtherActivity, &a.Other},
	}
	for _, q := range queries {
		err := ps.db.From(q.table).
			Eq("user_id", id).
			Order("start_date", false).
			Execute(ctx, q.target)
		if err != nil {
			return nil, err
		}
	}
	return &a, nil
}

// AddActivity validates and stores a new activity and returns its id
func (ps *ProfileService) AddActivity(ctx context.Context, in ActivityInput) (string, error) {
	if err := requireUser(ps.userID); err != nil {
		return "", err
	}
	if err := in.Validate(); err != nil {
		return "", err
	}
	if ps.lookups != nil {
		if err := ps.lookups.validate(ctx, in.DomainID, in.FunctionID, in.OccupationID); err != nil {
			return "", err
		}
	}

	var imageURL string
	if in.Image != "" {
		if ps.uploader == nil {
			return "", clierrors.ValidationError("image", "uploads are not configured")
		}
		res, err := ps.uploader.UploadImage(ctx, storage.FolderActivity, ps.userID, in.Image)
		if err != nil {
			return "", err
		}
		imageURL = res.URL
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)

	var (
		table string
		row   interface{}
	)
	switch in.Kind {
	case ActivityEducation:
		table = models.TableEducationActivity
		row = models.EducationActivity{
			UserID: ps.userID, Institution: title, Specialization: strings.TrimSpace(in.Specialization),
			DomainID: in.DomainID, StartDate: in.StartDate, EndDate: in.EndDate,
			Description: description, ImageURL: imageURL,
		}
	case ActivityJob:
		table = models.TableJobActivity
		row = models.JobActivity{
			UserID: ps.userID, Company: title,
			DomainID: in.DomainID, FunctionID: in.FunctionID, OccupationID: in.OccupationID,
			StartDate: in.StartDate, EndDate: in.EndDate,
			Description: description, ImageURL: imageURL,
		}
	default:
		table = models.TableOtherActivity
		row = models.OtherActivity{
			UserID: ps.userID, Title: title,
			DomainID: in.DomainID, StartDate: in.StartDate, EndDate: in.EndDate,
			Description: description, ImageURL: imageURL,
		}
	}

	var created []struct {
		ID string `json:"id"`
	}
	if err := ps.db.From(table).Insert(row).Execute(ctx, &created); err != nil {
		if imageURL != "" {
			discardUpload(ctx, ps.uploader, imageURL)
		}
		return "", err
	}
	ps.invalidateSelf()

	if len(created) == 0 {
		return "", clierrors.ServerError()
	}
	return created[0].ID, nil
}

// DeleteActivity removes one of the user's own activities
func (ps *ProfileService) DeleteActivity(ctx context.Context, kind, id string) error {
	if err := requireUser(ps.userID); err != nil {
		return err
	}
	table, err := activityTable(kind)
	if err != nil {
		return err
	}
	if id == "" {
		return clierrors.ValidationError("activity id", "is required")
	}

	var existing struct {
		ID       string `json:"id"`
		ImageURL string `json:"image_url"`
	}
	err = ps.db.From(table).
		Select("id,image_url").
		Eq("id", id).
		Eq("user_id", ps.userID).
		Single().
		Execute(ctx, &existing)
	if err != nil {
		if clierrors.IsNotFound(err) {
			return clierrors.NotFoundError("Activity", id)
		}
		return err
	}

	err = ps.db.From(table).
		Delete().
		Eq("id", id).
		Eq("user_id", ps.userID).
		Execute(ctx, nil)
	if err != nil {
		return err
	}
	ps.invalidateSelf()

	if existing.ImageURL != "" && ps.uploader != nil {
		if err := ps.uploader.Delete(ctx, existing.ImageURL); err != nil {
			logger.Warn("Failed to delete activity image", "activity_id", id, "error", err)
		}
	}
	return nil
}

// Close stops every profile poller
func (ps *ProfileService) Close() {
	ps.profiles.Close()
}

func (ps *ProfileService) updateUser(ctx context.Context, fields map[string]interface{}) error {
	err := ps.db.From(models.TableUser).
		Update(fields).
		Eq("id", ps.userID).
		Execute(ctx, nil)
	if err != nil {
		return err
	}

	if ps.accounts != nil && ps.accessToken != "" {
		if _, err := ps.accounts.UpdateMetadata(ctx, ps.accessToken, fields); err != nil {
			logger.Warn("Failed to update account metadata", "error", err)
		}
	}
	ps.invalidateSelf()
	return nil
}

func (ps *ProfileService) resolve(userID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	if err := requireUser(ps.userID); err != nil {
		return "", err
	}
	return ps.userID, nil
}

func (ps *ProfileService) invalidateSelf() {
	ps.profiles.Invalidate(ProfileKey(ps.userID))
}

func (ps *ProfileService) fetchProfile(ctx context.Context, key string) (*models.UserProfile, error) {
	return ps.api.GetUserProfile(ctx, idFromKey(key, ProfileKeyPrefix))
}

func activityTable(kind string) (string, error) {
	switch kind {
	case ActivityEducation:
		return models.TableEducationActivity, nil
	case ActivityJob:
		return models.TableJobActivity, nil
	case ActivityOther:
		return models.TableOtherActivity, nil
	default:
		return "", clierrors.ValidationError("kind", "must be education, job or other")
	}
}

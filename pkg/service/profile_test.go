package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/circle/cli/pkg/auth"
	"github.com/zfogg/circle/cli/pkg/cache"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/models"
)

type fakeAccounts struct {
	updates []map[string]interface{}
}

func (f *fakeAccounts) UpdateMetadata(ctx context.Context, token string, data map[string]interface{}) (*auth.User, error) {
	f.updates = append(f.updates, data)
	return &auth.User{ID: "u1", UserMetadata: data}, nil
}

const lookupsJSON = `[{"id":1,"name":"IT"},{"id":2,"name":"Health"}]`

func newProfile(fb *fakeBackend, user string) (*ProfileService, *fakeAccounts, *fakeUploader) {
	accounts := &fakeAccounts{}
	up := &fakeUploader{}
	lookups := NewLookupService(fb.db(), cache.New[*Lookups](time.Hour))
	ps := NewProfileService(ProfileDeps{
		DB:          fb.db(),
		API:         fb.api(),
		Accounts:    accounts,
		AccessToken: "token",
		Uploader:    up,
		Lookups:     lookups,
		UserID:      user,
	}, cache.New[*models.UserProfile](5*time.Minute), time.Hour)
	return ps, accounts, up
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"alice", "alice", false},
		{"  alice.b_1  ", "alice.b_1", false},
		{"", "", true},
		{"   ", "", true},
		{strings.Repeat("a", 30), strings.Repeat("a", 30), false},
		{strings.Repeat("a", 31), "", true},
		{"bad name", "", true},
		{"emoji🙂", "", true},
		{"dash-name", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateUsername(tt.in)
			if tt.wantErr {
				assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOwnProfileFromCache(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodGet, "/users/profile/u1", http.StatusOK,
		`{"status":"success","data":{"user":{"id":"u1","username":"alice"},"postCount":2}}`)
	ps, _, _ := newProfile(fb, "u1")
	defer ps.Close()

	p, err := ps.Profile(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.User.Username)

	_, err = ps.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, fb.requests(http.MethodGet, "/users/profile/u1"), 1)

	cached, ok := ps.Cached("")
	require.True(t, ok)
	assert.Equal(t, 2, cached.PostCount)
}

func TestUpdateUsername(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodPatch, "/user", http.StatusOK, `[]`)
	ps, accounts, _ := newProfile(fb, "u1")
	defer ps.Close()

	name, err := ps.UpdateUsername(context.Background(), "  new.name ")
	require.NoError(t, err)
	assert.Equal(t, "new.name", name)

	gets := fb.requests(http.MethodGet, "/user")
	require.Len(t, gets, 1)
	assert.Equal(t, "eq.new.name", gets[0].Query.Get("username"))
	assert.Equal(t, "neq.u1", gets[0].Query.Get("id"))

	patches := fb.requests(http.MethodPatch, "/user")
	require.Len(t, patches, 1)
	assert.JSONEq(t, `{"username":"new.name"}`, patches[0].Body)
	assert.Equal(t, "eq.u1", patches[0].Query.Get("id"))

	require.Len(t, accounts.updates, 1)
	assert.Equal(t, "new.name", accounts.updates[0]["username"])
}

func TestUpdateUsernameTaken(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodGet, "/user", http.StatusOK, `[{"id":"u9"}]`)
	ps, _, _ := newProfile(fb, "u1")
	defer ps.Close()

	_, err := ps.UpdateUsername(context.Background(), "bob")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeConflict))
	assert.Empty(t, fb.requests(http.MethodPatch, "/user"))
}

func TestUpdateUsernameInvalidSkipsNetwork(t *testing.T) {
	fb := newFakeBackend(t)
	ps, _, _ := newProfile(fb, "u1")
	defer ps.Close()

	_, err := ps.UpdateUsername(context.Background(), "")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
	assert.Equal(t, 0, fb.count())
}

func TestUpdateAvatar(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodPatch, "/user", http.StatusOK, `[]`)
	ps, _, up := newProfile(fb, "u1")
	defer ps.Close()

	url, err := ps.UpdateAvatar(context.Background(), "https://example.com/me.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/me.png", url)
	assert.Empty(t, up.uploads, "URLs are stored as is")

	url, err = ps.UpdateAvatar(context.Background(), "/tmp/me.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/avatars/u1/id.png", url)
}

func TestUpdateAvatarRemovesUploadWhenUpdateFails(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodPatch, "/user", http.StatusInternalServerError, `{"message":"boom"}`)
	ps, _, up := newProfile(fb, "u1")
	defer ps.Close()

	_, err := ps.UpdateAvatar(context.Background(), "/tmp/me.png")
	require.Error(t, err)
	assert.Equal(t, []string{"https://cdn.test/avatars/u1/id.png"}, up.deletes)
}

func TestActivityInputValidate(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	before := start.AddDate(-1, 0, 0)

	tests := []struct {
		name string
		in   ActivityInput
		ok   bool
	}{
		{"education ok", ActivityInput{Kind: ActivityEducation, Title: "Uni", DomainID: 1, StartDate: start}, true},
		{"job ok", ActivityInput{Kind: ActivityJob, Title: "Acme", DomainID: 1, FunctionID: 2, OccupationID: 3, StartDate: start}, true},
		{"missing title", ActivityInput{Kind: ActivityOther, DomainID: 1, StartDate: start}, false},
		{"missing domain", ActivityInput{Kind: ActivityOther, Title: "x", StartDate: start}, false},
		{"job missing function", ActivityInput{Kind: ActivityJob, Title: "Acme", DomainID: 1, OccupationID: 3, StartDate: start}, false},
		{"job missing occupation", ActivityInput{Kind: ActivityJob, Title: "Acme", DomainID: 1, FunctionID: 2, StartDate: start}, false},
		{"unknown kind", ActivityInput{Kind: "hobby", Title: "x", DomainID: 1, StartDate: start}, false},
		{"missing start", ActivityInput{Kind: ActivityOther, Title: "x", DomainID: 1}, false},
		{"end before start", ActivityInput{Kind: ActivityOther, Title: "x", DomainID: 1, StartDate: start, EndDate: &before}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation), "got %v", err)
			}
		})
	}
}

func TestAddActivityChecksLookups(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodGet, "/domenii", http.StatusOK, lookupsJSON)
	ps, _, _ := newProfile(fb, "u1")
	defer ps.Close()

	_, err := ps.AddActivity(context.Background(), ActivityInput{
		Kind: ActivityOther, Title: "Volunteer", DomainID: 99, StartDate: time.Now(),
	})
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
	assert.Empty(t, fb.requests(http.MethodPost, "/other_activity"))
}

func TestAddEducationWithImage(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodGet, "/domenii", http.StatusOK, lookupsJSON)
	fb.on(http.MethodPost, "/education_activity", http.StatusCreated, `[{"id":"e1"}]`)
	ps, _, up := newProfile(fb, "u1")
	defer ps.Close()

	id, err := ps.AddActivity(context.Background(), ActivityInput{
		Kind:      ActivityEducation,
		Title:     " University ",
		DomainID:  1,
		StartDate: time.Date(2018, 9, 1, 0, 0, 0, 0, time.UTC),
		Image:     "diploma.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "e1", id)
	assert.Equal(t, []string{"profile-activity/u1/id.png"}, up.uploads)

	posts := fb.requests(http.MethodPost, "/education_activity")
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0].Body, `"institution":"University"`)
	assert.Contains(t, posts[0].Body, `"image_url":"https://cdn.test/profile-activity/u1/id.png"`)
	assert.NotContains(t, posts[0].Body, `"end_date"`)
}

func TestAddActivityRemovesImageWhenInsertFails(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodGet, "/domenii", http.StatusOK, lookupsJSON)
	fb.on(http.MethodPost, "/other_activity", http.StatusInternalServerError, `{"message":"boom"}`)
	ps, _, up := newProfile(fb, "u1")
	defer ps.Close()

	_, err := ps.AddActivity(context.Background(), ActivityInput{
		Kind:      ActivityOther,
		Title:     "Volunteer",
		DomainID:  1,
		StartDate: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		Image:     "badge.png",
	})
	require.Error(t, err)
	assert.Equal(t, []string{"https://cdn.test/profile-activity/u1/id.png"}, up.deletes)
}

func TestListActivities(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodGet, "/job_activity", http.StatusOK, `[{"id":"j1","company":"Acme"}]`)
	ps, _, _ := newProfile(fb, "u1")
	defer ps.Close()

	a, err := ps.Activities(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, a.Jobs, 1)
	assert.Equal(t, "Acme", a.Jobs[0].Company)
	assert.Empty(t, a.Education)

	for _, path := range []string{"/education_activity", "/job_activity", "/other_activity"} {
		reqs := fb.requests(http.MethodGet, path)
		require.Len(t, reqs, 1, path)
		assert.Equal(t, "eq.u2", reqs[0].Query.Get("user_id"))
	}
}

func TestDeleteActivity(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodGet, "/job_activity", http.StatusOK, `{"id":"j1","image_url":"https://cdn.test/profile-activity/u1/x.png"}`)
	fb.on(http.MethodDelete, "/job_activity", http.StatusNoContent, ``)
	ps, _, up := newProfile(fb, "u1")
	defer ps.Close()

	require.NoError(t, ps.DeleteActivity(context.Background(), ActivityJob, "j1"))
	dels := fb.requests(http.MethodDelete, "/job_activity")
	require.Len(t, dels, 1)
	assert.Equal(t, "eq.u1", dels[0].Query.Get("user_id"))
	assert.Equal(t, []string{"https://cdn.test/profile-activity/u1/x.png"}, up.deletes)

	err := ps.DeleteActivity(context.Background(), "hobby", "j1")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
}

func TestLookupsCached(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on(http.MethodGet, "/domenii", http.StatusOK, lookupsJSON)
	fb.on(http.MethodGet, "/functii", http.StatusOK, `[{"id":5,"name":"Dev","domain_id":1},{"id":6,"name":"Nurse","domain_id":2}]`)
	ls := NewLookupService(fb.db(), cache.New[*Lookups](time.Hour))
	defer ls.Close()

	domains, err := ls.Domains(context.Background())
	require.NoError(t, err)
	assert.Len(t, domains, 2)

	fns, err := ls.Functions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, fns, 1)
	assert.Equal(t, "Dev", fns[0].Name)

	all, err := ls.Functions(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Len(t, fb.requests(http.MethodGet, "/domenii"), 1, "lookups are fetched once")
}

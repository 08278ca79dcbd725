package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/zfogg/circle/cli/pkg/db"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/models"
	"github.com/zfogg/circle/cli/pkg/storage"
)

// MaxPostLength is the longest accepted post or comment
const MaxPostLength = 2000

// PostDetail is a post with its comments
type PostDetail struct {
	Post     models.Post      `json:"post"`
	Comments []models.Comment `json:"comments"`
}

// PostService creates and reacts to posts
type PostService struct {
	db       *db.Client
	uploader Uploader
	userID   string
	feed     *FeedService
}

// NewPostService creates a post service. Writes invalidate feed.
func NewPostService(client *db.Client, uploader Uploader, userID string, feed *FeedService) *PostService {
	return &PostService{db: client, uploader: uploader, userID: userID, feed: feed}
}

// Create publishes a post with an optional image (path, base64 or data URI)
func (ps *PostService) Create(ctx context.Context, content, image string) (*models.Post, error) {
	if err := requireUser(ps.userID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" && image == "" {
		return nil, clierrors.ValidationError("post", "needs text or an image")
	}
	if utf8.RuneCountInString(content) > MaxPostLength {
		return nil, clierrors.ValidationError("post", "is too long")
	}

	payload := models.NewPost{UserID: ps.userID, Content: content}
	if image != "" {
		if ps.uploader == nil {
			return nil, clierrors.ValidationError("image", "uploads are not configured")
		}
		res, err := ps.uploader.UploadImage(ctx, storage.FolderPosts, ps.userID, image)
		if err != nil {
			return nil, err
		}
		payload.ImageURL = res.URL
	}

	var created []models.Post
	if err := ps.db.From(models.TablePost).Insert(payload).Execute(ctx, &created); err != nil {
		if payload.ImageURL != "" {
			discardUpload(ctx, ps.uploader, payload.ImageURL)
		}
		return nil, err
	}
	ps.invalidateFeed()

	if len(created) == 0 {
		return nil, clierrors.ServerError()
	}
	logger.Info("Post created", "post_id", created[0].ID)
	return &created[0], nil
}

// Show returns a post with its comments, oldest comment first
func (ps *PostService) Show(ctx context.Context, postID string) (*PostDetail, error) {
	post, err := ps.get(ctx, postID)
	if err != nil {
		return nil, err
	}

	var comments []models.Comment
	err = ps.db.From(models.TableComment).
		Select("*,user(*)").
		Eq("post_id", postID).
		Order("created_at", true).
		Execute(ctx, &comments)
	if err != nil {
		return nil, err
	}
	return &PostDetail{Post: *post, Comments: comments}, nil
}

// Delete removes one of the user's own posts
func (ps *PostService) Delete(ctx context.Context, postID string) error {
	if err := requireUser(ps.userID); err != nil {
		return err
	}
	post, err := ps.get(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != ps.userID {
		return clierrors.AuthorizationError("You can only delete your own posts")
	}

	err = ps.db.From(models.TablePost).
		Delete().
		Eq("id", postID).
		Eq("user_id", ps.userID).
		Execute(ctx, nil)
	if err != nil {
		return err
	}
	ps.invalidateFeed()

	if post.ImageURL != "" && ps.uploader != nil {
		if err := ps.uploader.Delete(ctx, post.ImageURL); err != nil {
			logger.Warn("Failed to delete post image", "post_id", postID, "error", err)
		}
	}
	return nil
}

// Like marks a post as liked. Liking twice is a no-op.
func (ps *PostService) Like(ctx context.Context, postID string) error {
	return ps.mark(ctx, models.TableLike, postID)
}

// Unlike removes a like
func (ps *PostService) Unlike(ctx context.Context, postID string) error {
	return ps.unmark(ctx, models.TableLike, postID)
}

// Save bookmarks a post. Saving twice is a no-op.
func (ps *PostService) Save(ctx context.Context, postID string) error {
	return ps.mark(ctx, models.TableSavedPost, postID)
}

// Unsave removes a bookmark
func (ps *PostService) Unsave(ctx context.Context, postID string) error {
	return ps.unmark(ctx, models.TableSavedPost, postID)
}

// Saved lists the user's bookmarked posts, newest bookmark first
func (ps *PostService) Saved(ctx context.Context) ([]models.Post, error) {
	if err := requireUser(ps.userID); err != nil {
		return nil, err
	}

	var rows []models.SavedPost
	err := ps.db.From(models.TableSavedPost).
		Select("*,post("+postColumns+")").
		Eq("user_id", ps.userID).
		Order("created_at", false).
		Execute(ctx, &rows)
	if err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(rows))
	for _, r := range rows {
		if r.Post != nil {
			posts = append(posts, *r.Post)
		}
	}
	return posts, nil
}

// AddComment replies to a post
func (ps *PostService) AddComment(ctx context.Context, postID, content string) (*models.Comment, error) {
	if err := requireUser(ps.userID); err != nil {
		return nil, err
	}
	if postID == "" {
		return nil, clierrors.ValidationError("post id", "is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, clierrors.ValidationError("comment", "cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxPostLength {
		return nil, clierrors.ValidationError("comment", "is too long")
	}

	var created []models.Comment
	err := ps.db.From(models.TableComment).
		Insert(models.NewComment{PostID: postID, UserID: ps.userID, Content: content}).
		Execute(ctx, &created)
	if err != nil {
		return nil, err
	}
	ps.invalidateFeed()

	if len(created) == 0 {
		return nil, clierrors.ServerError()
	}
	return &created[0], nil
}

// DeleteComment removes one of the user's own comments
func (ps *PostService) DeleteComment(ctx context.Context, commentID string) error {
	if err := requireUser(ps.userID); err != nil {
		return err
	}

	var comment models.Comment
	err := ps.db.From(models.TableComment).Eq("id", commentID).Single().Execute(ctx, &comment)
	if err != nil {
		return err
	}
	if comment.UserID != ps.userID {
		return clierrors.AuthorizationError("You can only delete your own comments")
	}

	err = ps.db.From(models.TableComment).
		Delete().
		Eq("id", commentID).
		Eq("user_id", ps.userID).
		Execute(ctx, nil)
	if err != nil {
		return err
	}
	ps.invalidateFeed()
	return nil
}

func (ps *PostService) get(ctx context.Context, postID string) (*models.Post, error) {
	if postID == "" {
		return nil, clierrors.ValidationError("post id", "is required")
	}
	var post models.Post
	err := ps.db.From(models.TablePost).
		Select(postColumns).
		Eq("id", postID).
		Single().
		Execute(ctx, &post)
	if err != nil {
		if clierrors.IsNotFound(err) {
			return nil, clierrors.NotFoundError("Post", postID)
		}
		return nil, err
	}
	return &post, nil
}

func (ps *PostService) mark(ctx context.Context, table, postID string) error {
	if err := requireUser(ps.userID); err != nil {
		return err
	}
	if postID == "" {
		return clierrors.ValidationError("post id", "is required")
	}

	err := ps.db.From(table).
		Insert(models.PostReaction{PostID: postID, UserID: ps.userID}).
		Execute(ctx, nil)
	if clierrors.IsType(err, clierrors.ErrorTypeConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	ps.invalidateFeed()
	return nil
}

func (ps *PostService) unmark(ctx context.Context, table, postID string) error {
	if err := requireUser(ps.userID); err != nil {
		return err
	}
	if postID == "" {
		return clierrors.ValidationError("post id", "is required")
	}

	err := ps.db.From(table).
		Delete().
		Eq("post_id", postID).
		Eq("user_id", ps.userID).
		Execute(ctx, nil)
	if err != nil {
		return err
	}
	ps.invalidateFeed()
	return nil
}

func (ps *PostService) invalidateFeed() {
	if ps.feed != nil {
		ps.feed.Invalidate()
	}
}

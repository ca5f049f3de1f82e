package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/imagestore"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
)

// sagaStep is one stage of a cascade. A best-effort step that fails is
// logged and skipped; any other failure stops the cascade.
type sagaStep struct {
	name       string
	bestEffort bool
	run        func(ctx context.Context) error
}

// saga runs steps strictly in order. Every step is idempotent, so a cascade
// interrupted by a crash or a failed step can be re-run from the start.
type saga struct {
	name   string
	logger logging.Logger
	steps  []sagaStep
}

func (s *saga) step(name string, run func(ctx context.Context) error) {
	s.steps = append(s.steps, sagaStep{name: name, run: run})
}

func (s *saga) bestEffort(name string, run func(ctx context.Context) error) {
	s.steps = append(s.steps, sagaStep{name: name, bestEffort: true, run: run})
}

func (s *saga) run(ctx context.Context) error {
	for _, st := range s.steps {
		err := st.run(ctx)
		if err == nil {
			continue
		}
		if st.bestEffort {
			s.logger.Warn(ctx, "cascade step failed, continuing", "cascade", s.name, "step", st.name, "error", err)
			continue
		}
		s.logger.Error(ctx, "cascade aborted", "cascade", s.name, "step", st.name, "error", err)
		return fmt.Errorf("%s: %s: %w", s.name, st.name, err)
	}
	s.logger.Debug(ctx, "cascade completed", "cascade", s.name)
	return nil
}

// CascadeCoordinator deletes posts and users together with everything that
// depends on them, across the database and the image store. Image cleanup
// is best-effort: an image store failure leaves an orphaned object but never
// blocks the database from reaching the deleted state.
type CascadeCoordinator struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	images      imagestore.Store
	logger      logging.Logger
}

func NewCascadeCoordinator(db *sql.DB, m repomanager.RepositoryManager, images imagestore.Store, logger logging.Logger) *CascadeCoordinator {
	return &CascadeCoordinator{
		db:          db,
		repomanager: m,
		images:      images,
		logger:      logger.With("module", "cascade"),
	}
}

// DeletePost removes a post for its author or an admin: image, comments,
// likes, then the post row.
func (c *CascadeCoordinator) DeletePost(ctx context.Context, actor auth.Identity, postID string) error {
	if err := requireID("post", postID); err != nil {
		return err
	}

	postsRepo := c.repomanager.Posts(c.db)
	post, err := postsRepo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("post not found: %w", err)
		}
		return fmt.Errorf("error loading post: %w", err)
	}

	if actor.UserID != post.UserID && !actor.IsAdmin() {
		return common.ErrForbidden
	}

	commentsRepo := c.repomanager.Comments(c.db)

	s := &saga{name: "delete post", logger: c.logger.With("post_id", postID)}
	s.bestEffort("delete post image", func(ctx context.Context) error {
		return c.images.Delete(ctx, post.Image.PublicID)
	})
	s.step("delete comments", func(ctx context.Context) error {
		return commentsRepo.DeleteByPost(ctx, postID)
	})
	s.step("delete likes", func(ctx context.Context) error {
		return postsRepo.DeleteLikesByPost(ctx, postID)
	})
	s.step("delete post record", func(ctx context.Context) error {
		return postsRepo.Delete(ctx, postID)
	})

	return s.run(ctx)
}

// DeleteUser removes a user on behalf of that user or an admin. Post image ids are
// collected before any row is deleted; dependents are removed before the
// rows they point to so a re-run can still find them.
func (c *CascadeCoordinator) DeleteUser(ctx context.Context, actor auth.Identity, userID string) error {
	if actor.UserID != userID && !actor.IsAdmin() {
		return common.ErrForbidden
	}
	if err := requireID("user", userID); err != nil {
		return err
	}

	usersRepo := c.repomanager.Users(c.db)
	user, err := usersRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("user not found: %w", err)
		}
		return fmt.Errorf("error loading user: %w", err)
	}

	postsRepo := c.repomanager.Posts(c.db)
	commentsRepo := c.repomanager.Comments(c.db)
	tokensRepo := c.repomanager.ProofTokens(c.db)

	userPosts, err := postsRepo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("error listing user posts: %w", err)
	}
	imageIDs := make([]string, 0, len(userPosts))
	for _, p := range userPosts {
		if !p.Image.IsZero() {
			imageIDs = append(imageIDs, p.Image.PublicID)
		}
	}

	s := &saga{name: "delete user", logger: c.logger.With("user_id", userID)}
	s.bestEffort("delete post images", func(ctx context.Context) error {
		return c.images.DeleteMany(ctx, imageIDs)
	})
	s.bestEffort("delete profile photo", func(ctx context.Context) error {
		return c.images.Delete(ctx, user.ProfilePhoto.PublicID)
	})
	s.step("delete comments on user posts", func(ctx context.Context) error {
		return commentsRepo.DeleteOnPostsOf(ctx, userID)
	})
	s.step("delete likes on user posts", func(ctx context.Context) error {
		return postsRepo.DeleteLikesOnPostsOf(ctx, userID)
	})
	s.step("delete posts", func(ctx context.Context) error {
		return postsRepo.DeleteByUser(ctx, userID)
	})
	s.step("delete user comments", func(ctx context.Context) error {
		return commentsRepo.DeleteByUser(ctx, userID)
	})
	s.step("delete user likes", func(ctx context.Context) error {
		return postsRepo.DeleteLikesByUser(ctx, userID)
	})
	s.step("delete proof tokens", func(ctx context.Context) error {
		return tokensRepo.DeleteByUser(ctx, userID)
	})
	s.step("delete user record", func(ctx context.Context) error {
		return usersRepo.Delete(ctx, userID)
	})

	return s.run(ctx)
}

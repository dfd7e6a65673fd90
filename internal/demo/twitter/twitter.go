// Package twitter is a small social network modelled on the store: users keyed
// by handle, tweets keyed by counter, and follow, favorite and retweet edges
// kept as sets of references on both ends.
package twitter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/redisstore/pkg/store"
)

// User is keyed by handle
type User struct {
	Handle      string `store:",id"`
	DisplayName store.Value[string]
	Email       store.Value[*string] `store:",unique,index"`
	Tweets      store.Set[*Tweet]
	Following   store.Set[*User]
	Followers   store.Set[*User]
	Favorites   store.Set[*Tweet]
}

// Tweet is keyed by counter
type Tweet struct {
	ID          int64
	Body        store.Value[string]
	CreatedDate store.Value[time.Time]
	Author      store.Value[*User]
	FavoritedBy store.Set[*User]
	RetweetedBy store.Set[*User]
	InReplyTo   store.Value[*Tweet]
}

// Service runs the demo operations against a store
type Service struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService registers the demo types with s
func NewService(s *store.Store, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := store.Register[User](s); err != nil {
		return nil, err
	}
	if err := store.Register[Tweet](s); err != nil {
		return nil, err
	}
	return &Service{store: s, logger: logger, now: time.Now}, nil
}

// SignUp creates the user with the given handle. An empty email is left unset.
func (svc *Service) SignUp(ctx context.Context, handle, displayName, email string) (*User, error) {
	u, err := store.Create[User](ctx, svc.store, handle)
	if err != nil {
		return nil, err
	}
	if err := u.DisplayName.Set(ctx, displayName); err != nil {
		return nil, err
	}
	if email != "" {
		if err := u.Email.Set(ctx, &email); err != nil {
			return nil, fmt.Errorf("sign up %s: %w", handle, err)
		}
	}

	svc.logger.Info("user signed up", zap.String("handle", handle))
	return u, nil
}

// FindByEmail returns the user holding email, or nil
func (svc *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	found, err := store.IndexQuery[User](ctx, svc.store, store.Where("Email").Eq(email))
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// Tweet posts body as user, optionally in reply to another tweet
func (svc *Service) Tweet(ctx context.Context, user *User, body string, inReplyTo *Tweet) (*Tweet, error) {
	t, err := store.Create[Tweet](ctx, svc.store)
	if err != nil {
		return nil, err
	}
	if err := t.Body.Set(ctx, body); err != nil {
		return nil, err
	}
	if err := t.CreatedDate.Set(ctx, svc.now().UTC()); err != nil {
		return nil, err
	}
	if err := t.Author.Set(ctx, user); err != nil {
		return nil, err
	}
	if _, err := user.Tweets.Add(ctx, t); err != nil {
		return nil, err
	}
	if inReplyTo != nil {
		if err := t.InReplyTo.Set(ctx, inReplyTo); err != nil {
			return nil, err
		}
	}

	svc.logger.Info("tweeted", zap.String("handle", user.Handle), zap.Int64("tweet", t.ID))
	return t, nil
}

// Follow makes user follow other
func (svc *Service) Follow(ctx context.Context, user, other *User) error {
	if _, err := user.Following.Add(ctx, other); err != nil {
		return err
	}
	_, err := other.Followers.Add(ctx, user)
	return err
}

// Unfollow reverses Follow
func (svc *Service) Unfollow(ctx context.Context, user, other *User) error {
	if _, err := user.Following.Remove(ctx, other); err != nil {
		return err
	}
	_, err := other.Followers.Remove(ctx, user)
	return err
}

// Favorite records that user likes tweet
func (svc *Service) Favorite(ctx context.Context, user *User, tweet *Tweet) error {
	if _, err := user.Favorites.Add(ctx, tweet); err != nil {
		return err
	}
	_, err := tweet.FavoritedBy.Add(ctx, user)
	return err
}

// Retweet adds tweet to user's tweets
func (svc *Service) Retweet(ctx context.Context, user *User, tweet *Tweet) error {
	if _, err := user.Tweets.Add(ctx, tweet); err != nil {
		return err
	}
	_, err := tweet.RetweetedBy.Add(ctx, user)
	return err
}

// Mutuals returns the handles user follows that also follow user
func (svc *Service) Mutuals(ctx context.Context, user *User) ([]string, error) {
	var out []string
	for u, err := range user.Following.Intersect(ctx, &user.Followers) {
		if err != nil {
			return nil, err
		}
		out = append(out, u.Handle)
	}
	return out, nil
}

// Summary is the outcome of Run
type Summary struct {
	Users  []string
	Tweets int64
	Reply  int64
}

// Run plays the scripted demo: two users sign up, one tweets, the other
// favorites, retweets and replies.
func (svc *Service) Run(ctx context.Context) (*Summary, error) {
	jason, err := svc.SignUp(ctx, "JasonPunyon", "JSONP", "jason@example.com")
	if err != nil {
		return nil, err
	}
	jeff, err := svc.SignUp(ctx, "codinghorror", "Jeff Atwood", "jeff@example.com")
	if err != nil {
		return nil, err
	}

	great, err := svc.Tweet(ctx, jason, "Isn't twitter just the greatest?", nil)
	if err != nil {
		return nil, err
	}
	if err := svc.Favorite(ctx, jeff, great); err != nil {
		return nil, err
	}
	if err := svc.Retweet(ctx, jeff, great); err != nil {
		return nil, err
	}
	if err := svc.Follow(ctx, jeff, jason); err != nil {
		return nil, err
	}
	reply, err := svc.Tweet(ctx, jeff, "It sure is, Jason!", great)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Users: []string{jason.Handle, jeff.Handle}, Reply: reply.ID}
	for _, err := range store.Enumerate[Tweet](ctx, svc.store) {
		if err != nil {
			return nil, err
		}
		sum.Tweets++
	}
	return sum, nil
}

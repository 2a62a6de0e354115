package devserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SeedOptions controls the demo data Seed generates
type SeedOptions struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	Password        string
	// Seed makes the generated data reproducible; zero picks a random seed
	Seed uint64
}

func (o SeedOptions) withDefaults() SeedOptions {
	if o.Users <= 0 {
		o.Users = 5
	}
	if o.PostsPerUser < 0 {
		o.PostsPerUser = 0
	}
	if o.CommentsPerPost < 0 {
		o.CommentsPerPost = 0
	}
	if o.Password == "" {
		o.Password = "password123"
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	return o
}

// Seed fills the database with fake users, posts, comments, likes and
// follows. Every user gets the same password. It returns the usernames
// created.
func (s *Server) Seed(opts SeedOptions) ([]string, error) {
	opts = opts.withDefaults()
	faker := gofakeit.New(opts.Seed)

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()

	now := s.docs.now()
	users := make([]*userDoc, 0, opts.Users)
	for len(users) < opts.Users {
		username := strings.ToLower(faker.Username())
		email := strings.ToLower(faker.Email())
		if s.docs.userExists(email, username) {
			continue
		}
		u := &userDoc{
			ID:           newID(),
			Email:        email,
			Username:     username,
			Name:         faker.Name(),
			Bio:          faker.HipsterSentence(),
			PasswordHash: hash,
			Following:    make(map[string]bool),
			CreatedAt:    faker.DateRange(now.AddDate(0, -6, 0), now),
		}
		s.docs.users[u.ID] = u
		users = append(users, u)
	}

	for _, u := range users {
		for _, other := range users {
			if other != u && faker.Number(0, 2) == 0 {
				u.Following[other.ID] = true
			}
		}

		for i := 0; i < opts.PostsPerUser; i++ {
			p := &postDoc{
				ID:        newID(),
				AuthorID:  u.ID,
				ImageURL:  fmt.Sprintf("https://picsum.photos/seed/%s/600/600", faker.LetterN(10)),
				Text:      faker.HipsterSentence(),
				CreatedAt: faker.DateRange(now.AddDate(0, 0, -30), now),
				Likes:     make(map[string]bool),
			}
			s.docs.posts[p.ID] = p

			for _, liker := range users {
				if faker.Number(0, 3) == 0 {
					p.Likes[liker.ID] = true
				}
			}
			for j := 0; j < opts.CommentsPerPost; j++ {
				author := users[faker.Number(0, len(users)-1)]
				s.docs.comments[p.ID] = append(s.docs.comments[p.ID], &commentDoc{
					ID:        newID(),
					PostID:    p.ID,
					AuthorID:  author.ID,
					Text:      faker.Sentence(faker.Number(3, 10)),
					CreatedAt: faker.DateRange(p.CreatedAt, now),
				})
			}
		}
	}

	usernames := make([]string, len(users))
	for i, u := range users {
		usernames[i] = u.Username
	}
	s.log.Info("Seeded demo data",
		zap.Int("users", len(users)),
		zap.Int("posts", len(users)*opts.PostsPerUser),
		zap.Int("comments", len(users)*opts.PostsPerUser*opts.CommentsPerPost))
	return usernames, nil
}

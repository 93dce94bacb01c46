package seed

import (
	"fmt"
	"log"

	"localpulse/internal/database"
	"localpulse/internal/models"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	Users      int
	Contents   int
	Categories []string
	// Maximum follows per user; the mesh is random below this.
	MaxFollows   int
	MaxDays      int
	VideoPercent int
	BatchSize    int
	RandomSeed   int64
	DryRun       bool
}

func (o Options) withDefaults() Options {
	if len(o.Categories) == 0 {
		o.Categories = []string{"Politics", "Sports", "Health", "Business", "Entertainment"}
	}
	if o.MaxFollows <= 0 {
		o.MaxFollows = 15
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 30
	}
	if o.VideoPercent < 0 || o.VideoPercent > 100 {
		o.VideoPercent = 20
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	return o
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Follows  int
	Contents int
	Likes    int
	Comments int
	Replies  int
	Drafts   int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d follows, %d contents, %d likes, %d comments, %d replies, %d drafts",
		s.Users, s.Follows, s.Contents, s.Likes, s.Comments, s.Replies, s.Drafts)
}

// Seeder orchestrates a full seed run.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder builds a Seeder over the embedded geography catalog.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return &Seeder{db: db, factory: NewFactory(db, catalog, opts), opts: opts}, nil
}

// Factory exposes the underlying factory for ad-hoc fixtures.
func (s *Seeder) Factory() *Factory { return s.factory }

// ClearAll deletes every row of every persistent model.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec(`TRUNCATE TABLE reports, notifications, broadcasts, drafts, replies, comments, likes, following, followers, contents, users RESTART IDENTITY CASCADE`).Error
	}
	for _, m := range database.PersistentModels() {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	return nil
}

// Run seeds users, the follow mesh, content, engagement and drafts.
func (s *Seeder) Run() (Summary, error) {
	var sum Summary
	log.Printf("🌱 Seeding %d users and %d contents...", s.opts.Users, s.opts.Contents)

	users, err := s.SeedUsers(s.opts.Users)
	if err != nil {
		return sum, fmt.Errorf("failed to create users: %w", err)
	}
	sum.Users = len(users)
	log.Printf("✓ %d users created", sum.Users)

	if sum.Follows, err = s.SeedFollowMesh(users); err != nil {
		return sum, fmt.Errorf("failed to create follows: %w", err)
	}
	log.Printf("✓ %d follow edges created", sum.Follows)

	contents, err := s.SeedContents(users, s.opts.Contents)
	if err != nil {
		return sum, fmt.Errorf("failed to create contents: %w", err)
	}
	sum.Contents = len(contents)
	log.Printf("✓ %d contents created", sum.Contents)

	if sum.Likes, sum.Comments, sum.Replies, err = s.SeedEngagement(users, contents); err != nil {
		return sum, fmt.Errorf("failed to create engagement: %w", err)
	}
	log.Printf("✓ %d likes, %d comments, %d replies created", sum.Likes, sum.Comments, sum.Replies)

	if sum.Drafts, err = s.SeedDrafts(users); err != nil {
		return sum, fmt.Errorf("failed to create drafts: %w", err)
	}
	log.Printf("✓ %d drafts created", sum.Drafts)

	log.Println("🎉 Database seeding completed successfully!")
	return sum, nil
}

// SeedUsers creates count users. The first user is always an admin named
// "editor" so broadcasts can be tried out right away.
func (s *Seeder) SeedUsers(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		if i == 0 {
			users = append(users, s.factory.BuildUser(func(u *models.User) {
				u.Name = "Editor"
				u.Username = "editor"
				u.Role = models.RoleAdmin
			}))
			continue
		}
		users = append(users, s.factory.BuildUser())
	}
	if len(users) == 0 {
		return users, nil
	}
	if err := s.factory.CreateUsers(users); err != nil {
		return nil, err
	}
	return users, nil
}

// SeedFollowMesh makes every user follow a random set of other users.
func (s *Seeder) SeedFollowMesh(users []*models.User) (int, error) {
	if len(users) < 2 {
		return 0, nil
	}
	f := s.factory.faker
	edges := 0
	for i, follower := range users {
		n := f.Number(0, min(s.opts.MaxFollows, len(users)-1))
		seen := make(map[int]bool, n)
		for len(seen) < n {
			j := f.Number(0, len(users)-1)
			if j == i || seen[j] {
				continue
			}
			seen[j] = true
			if err := s.factory.CreateFollow(follower, users[j]); err != nil {
				return edges, err
			}
			edges++
		}
	}
	return edges, nil
}

// SeedContents creates count published items by random authors.
func (s *Seeder) SeedContents(users []*models.User, count int) ([]*models.Content, error) {
	if len(users) == 0 || count <= 0 {
		return nil, nil
	}
	f := s.factory.faker
	contents := make([]*models.Content, 0, count)
	for i := 0; i < count; i++ {
		author := users[f.Number(0, len(users)-1)]
		contents = append(contents, s.factory.BuildContent(author))
	}
	if err := s.factory.CreateContents(contents); err != nil {
		return nil, err
	}
	return contents, nil
}

// SeedEngagement adds likes, comments and replies to the given content.
func (s *Seeder) SeedEngagement(users []*models.User, contents []*models.Content) (likes, comments, replies int, err error) {
	if len(users) == 0 {
		return 0, 0, 0, nil
	}
	f := s.factory.faker

	var likeRows []models.Like
	var commentRows []*models.Comment
	for _, c := range contents {
		likers := f.Number(0, len(users)-1)
		seen := make(map[uint]bool, likers)
		for k := 0; k < likers; k++ {
			u := users[f.Number(0, len(users)-1)]
			if seen[u.ID] {
				continue
			}
			seen[u.ID] = true
			likeRows = append(likeRows, models.Like{ContentID: c.ID, UserID: u.ID, CreatedAt: s.factory.after(c.CreatedAt)})
		}
		for k := f.Number(0, 4); k > 0; k-- {
			commentRows = append(commentRows, s.factory.BuildComment(users[f.Number(0, len(users)-1)], c))
		}
	}
	if len(likeRows) > 0 {
		if err = s.factory.create(likeRows); err != nil {
			return 0, 0, 0, err
		}
	}
	if len(commentRows) > 0 {
		if err = s.factory.create(commentRows); err != nil {
			return len(likeRows), 0, 0, err
		}
	}

	var replyRows []*models.Reply
	for _, cm := range commentRows {
		if f.Number(1, 100) > 40 {
			continue
		}
		replyRows = append(replyRows, s.factory.BuildReply(users[f.Number(0, len(users)-1)], cm))
	}
	if len(replyRows) > 0 {
		if err = s.factory.create(replyRows); err != nil {
			return len(likeRows), len(commentRows), 0, err
		}
	}
	return len(likeRows), len(commentRows), len(replyRows), nil
}

// SeedDrafts gives roughly a third of the users an autosaved draft.
func (s *Seeder) SeedDrafts(users []*models.User) (int, error) {
	var drafts []*models.Draft
	for _, u := range users {
		if s.factory.faker.Number(1, 3) != 1 {
			continue
		}
		drafts = append(drafts, s.factory.BuildDraft(u))
	}
	if len(drafts) == 0 {
		return 0, nil
	}
	if err := s.factory.create(drafts); err != nil {
		return 0, err
	}
	return len(drafts), nil
}

// SeededUsers returns the first n users by id, admins first.
func (s *Seeder) SeededUsers(n int) ([]models.User, error) {
	var users []models.User
	err := s.db.Order("CASE WHEN role = 'admin' THEN 0 ELSE 1 END").Order("id").Limit(n).Find(&users).Error
	return users, err
}

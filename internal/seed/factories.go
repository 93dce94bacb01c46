// Package seed creates demo data for development databases. It writes
// rows directly and bypasses the services, so no notifications are sent
// and nothing is published to live topics.
package seed

import (
	"fmt"
	"log"
	"strings"
	"time"

	"localpulse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db      *gorm.DB
	opts    Options
	faker   *gofakeit.Faker
	catalog *Catalog
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory. A zero Options.RandomSeed seeds from the clock.
func NewFactory(db *gorm.DB, catalog *Catalog, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		db:      db,
		opts:    opts.withDefaults(),
		faker:   gofakeit.New(seed),
		catalog: catalog,
		nextID:  1000,
	}
}

// BuildUser returns an unsaved user. Usernames carry a numeric suffix so
// batches do not collide on the unique index.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first := f.faker.FirstName()
	last := f.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s.%s%d", first, last, f.faker.Number(100, 99999)))
	user := &models.User{
		Name:      first + " " + last,
		Username:  username,
		Bio:       f.faker.Sentence(10),
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		Role:      models.RoleUser,
	}
	if f.faker.Number(1, 100) <= 60 {
		user.Preferred = f.catalog.Pick(f.faker)
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// BuildContent returns an unsaved published item for the given author.
// CreatedAt is spread over the last Options.MaxDays days.
func (f *Factory) BuildContent(author *models.User, overrides ...func(*models.Content)) *models.Content {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(4, 9)), ".")
	content := &models.Content{
		Type:         models.ContentTypePost,
		AuthorID:     author.ID,
		Title:        title,
		Body:         f.htmlBody(),
		Category:     f.faker.RandomString(f.opts.Categories),
		Geography:    f.catalog.Pick(f.faker),
		ThumbnailURL: fmt.Sprintf("https://picsum.photos/seed/%s/800/450", f.faker.UUID()),
		CreatedAt:    f.pastTime(),
	}

	if f.faker.Number(1, 100) <= f.opts.VideoPercent {
		id := f.faker.UUID()
		content.Type = models.ContentTypeVideo
		content.VideoURL = fmt.Sprintf("https://media.example.com/videos/%s.mp4", id)
		content.FrameURL = fmt.Sprintf("https://picsum.photos/seed/frame-%s/1280/720", id)
	}
	content.ViewCount = int64(f.faker.Number(0, 5000))
	content.ShareCount = int64(f.faker.Number(0, 200))
	content.UpdatedAt = content.CreatedAt

	for _, override := range overrides {
		override(content)
	}
	return content
}

// BuildDraft returns an unsaved, partially filled draft.
func (f *Factory) BuildDraft(owner *models.User, overrides ...func(*models.Draft)) *models.Draft {
	draft := &models.Draft{
		ID:      uuid.NewString(),
		OwnerID: owner.ID,
		Type:    models.ContentTypePost,
		Title:   strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 7)), "."),
	}
	// Autosaved drafts are often incomplete.
	if f.faker.Bool() {
		draft.Body = f.htmlBody()
	}
	if f.faker.Bool() {
		draft.Category = f.faker.RandomString(f.opts.Categories)
		draft.Geography = f.catalog.Pick(f.faker)
	}
	for _, override := range overrides {
		override(draft)
	}
	return draft
}

// BuildComment returns an unsaved comment on content by user.
func (f *Factory) BuildComment(user *models.User, content *models.Content) *models.Comment {
	at := f.after(content.CreatedAt)
	return &models.Comment{
		ContentID: content.ID,
		UserID:    user.ID,
		Text:      f.faker.Sentence(f.faker.Number(4, 16)),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// BuildReply returns an unsaved reply to comment by user.
func (f *Factory) BuildReply(user *models.User, comment *models.Comment) *models.Reply {
	at := f.after(comment.CreatedAt)
	return &models.Reply{
		CommentID: comment.ID,
		ContentID: comment.ContentID,
		UserID:    user.ID,
		Text:      f.faker.Sentence(f.faker.Number(3, 10)),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// CreateUsers persists users in batches.
func (f *Factory) CreateUsers(users []*models.User) error {
	if f.opts.DryRun {
		for _, u := range users {
			f.nextID++
			u.ID = f.nextID
		}
		log.Printf("[dry-run] CreateUsers: %d users (no DB write)", len(users))
		return nil
	}
	return f.db.CreateInBatches(users, f.opts.BatchSize).Error
}

// CreateContents persists content in batches. The author association is
// omitted so the author rows are not upserted again.
func (f *Factory) CreateContents(contents []*models.Content) error {
	if f.opts.DryRun {
		for _, c := range contents {
			f.nextID++
			c.ID = f.nextID
		}
		log.Printf("[dry-run] CreateContents: %d items (no DB write)", len(contents))
		return nil
	}
	return f.db.Omit("Author").CreateInBatches(contents, f.opts.BatchSize).Error
}

// CreateFollow persists both mirrored edges of follower -> target.
func (f *Factory) CreateFollow(follower, target *models.User) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.Follower{UserID: target.ID, FollowerID: follower.ID}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Following{UserID: follower.ID, FollowingID: target.ID}).Error
	})
}

// create persists any slice of rows in batches, skipping associations.
func (f *Factory) create(rows interface{}) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Omit("User").CreateInBatches(rows, f.opts.BatchSize).Error
}

func (f *Factory) htmlBody() string {
	paragraphs := f.faker.Number(1, 4)
	var sb strings.Builder
	for i := 0; i < paragraphs; i++ {
		sb.WriteString("<p>")
		sb.WriteString(f.faker.Paragraph(1, f.faker.Number(2, 5), 12, " "))
		sb.WriteString("</p>")
	}
	return sb.String()
}

func (f *Factory) pastTime() time.Time {
	now := time.Now()
	return f.faker.DateRange(now.AddDate(0, 0, -f.opts.MaxDays), now)
}

// after returns a time between t and now.
func (f *Factory) after(t time.Time) time.Time {
	now := time.Now()
	if !t.Before(now) {
		return now
	}
	return f.faker.DateRange(t, now)
}

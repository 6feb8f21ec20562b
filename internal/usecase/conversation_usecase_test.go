package usecase

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlink/internal/domain/entity"
	"farmlink/internal/infrastructure/ratelimit"
	"farmlink/pkg/errors"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func msg(id, from, to string, at time.Duration, read bool) *entity.Message {
	return &entity.Message{
		ID:         id,
		SenderID:   from,
		ReceiverID: to,
		Type:       entity.MessageText,
		Content:    "hello " + id,
		Read:       read,
		CreatedAt:  t0.Add(at),
	}
}

func TestBuildConversationsUnreadCountsOnlyViewer(t *testing.T) {
	messages := []*entity.Message{
		msg("m1", "A", "B", 1*time.Minute, false),
		msg("m2", "B", "A", 2*time.Minute, true),
	}

	convs := BuildConversations("A", messages)
	require.Len(t, convs, 1)
	assert.Equal(t, "B", convs[0].OtherPartyID)
	assert.Equal(t, "m2", convs[0].LastMessage.ID)
	assert.Equal(t, 0, convs[0].UnreadCount)

	convs = BuildConversations("B", messages)
	require.Len(t, convs, 1)
	assert.Equal(t, "A", convs[0].OtherPartyID)
	assert.Equal(t, 1, convs[0].UnreadCount)
}

func TestBuildConversationsGroupsAndOrders(t *testing.T) {
	messages := []*entity.Message{
		msg("m1", "C", "A", 1*time.Minute, false),
		msg("m5", "A", "B", 5*time.Minute, false),
		msg("m3", "C", "A", 3*time.Minute, false),
		msg("m2", "B", "A", 2*time.Minute, false),
		msg("m4", "D", "A", 4*time.Minute, true),
		msg("x9", "B", "C", 9*time.Minute, false),
	}

	convs := BuildConversations("A", messages)
	require.Len(t, convs, 3)

	assert.Equal(t, "B", convs[0].OtherPartyID)
	assert.Equal(t, "m5", convs[0].LastMessage.ID)
	assert.Equal(t, 1, convs[0].UnreadCount)

	assert.Equal(t, "D", convs[1].OtherPartyID)
	assert.Equal(t, 0, convs[1].UnreadCount)

	assert.Equal(t, "C", convs[2].OtherPartyID)
	assert.Equal(t, "m3", convs[2].LastMessage.ID)
	assert.Equal(t, 2, convs[2].UnreadCount)

	// input order is not relied on and not modified
	assert.Equal(t, "m1", messages[0].ID)
}

func TestBuildConversationsTieBreaksOnID(t *testing.T) {
	messages := []*entity.Message{
		msg("a", "B", "A", time.Minute, false),
		msg("c", "B", "A", time.Minute, false),
		msg("b", "A", "B", time.Minute, false),
	}

	for i := 0; i < 3; i++ {
		rotated := append(append([]*entity.Message{}, messages[i:]...), messages[:i]...)
		convs := BuildConversations("A", rotated)
		require.Len(t, convs, 1)
		assert.Equal(t, "c", convs[0].LastMessage.ID)
		assert.Equal(t, 2, convs[0].UnreadCount)
	}
}

func TestBuildConversationsProductContextFromLastMessage(t *testing.T) {
	older := msg("m1", "B", "A", time.Minute, true)
	older.ProductID = "tomatoes"
	newer := msg("m2", "B", "A", 2*time.Minute, true)

	convs := BuildConversations("A", []*entity.Message{older, newer})
	require.Len(t, convs, 1)
	assert.Nil(t, convs[0].ProductContext)

	newer.ProductID = "kale"
	convs = BuildConversations("A", []*entity.Message{older, newer})
	require.NotNil(t, convs[0].ProductContext)
	assert.Equal(t, "kale", convs[0].ProductContext.ID)
}

func TestBuildConversationsEmpty(t *testing.T) {
	assert.Empty(t, BuildConversations("A", nil))
}

type recordingMediaStore struct {
	uploads []string
}

func (m *recordingMediaStore) Upload(ctx context.Context, data io.Reader, contentType, folder string) (string, error) {
	if _, err := io.ReadAll(data); err != nil {
		return "", err
	}
	m.uploads = append(m.uploads, folder)
	return "https://media.example.com/" + folder + "/1", nil
}

func (m *recordingMediaStore) Delete(ctx context.Context, url string) error {
	return nil
}

func newConversationFixture(t *testing.T) (*fixture, *ConversationUseCase, *recordingMediaStore) {
	t.Helper()
	f := newFixture(t)
	media := &recordingMediaStore{}
	uc := NewConversationUseCase(f.repos.Messages, f.repos.Profiles, f.repos.Products, media, f.limiter)
	uc.now = f.clock.Now
	return f, uc, media
}

func TestSendMessageAndReadThread(t *testing.T) {
	ctx := context.Background()
	f, uc, _ := newConversationFixture(t)
	farmer := f.profile(t, "farmer-1", entity.RoleFarmer)
	buyer := f.profile(t, "buyer-1", entity.RoleBuyer)
	f.product(t, "tomatoes", farmer.UserID, "2.50", 10)

	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Second)
		_, err := uc.SendMessage(ctx, buyer, SendMessageInput{ReceiverID: farmer.UserID, Content: "are these ripe?", ProductID: "tomatoes"})
		require.NoError(t, err)
	}

	unread, err := uc.CountUnreadMessages(ctx, farmer)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	convs, err := uc.GetConversations(ctx, farmer)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 3, convs[0].UnreadCount)
	require.NotNil(t, convs[0].OtherParty)
	assert.Equal(t, "User buyer-1", convs[0].OtherParty.FullName)
	require.NotNil(t, convs[0].ProductContext)
	assert.Equal(t, "Product tomatoes", convs[0].ProductContext.Name)

	n, err := uc.MarkThreadRead(ctx, farmer, buyer.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = uc.MarkThreadRead(ctx, farmer, buyer.UserID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	unread, err = uc.CountUnreadMessages(ctx, farmer)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	thread, total, err := uc.GetThread(ctx, buyer, farmer.UserID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, thread, 2)

	assert.Len(t, f.pendingEvents(t, entity.EventMessageSent), 3)
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	f, uc, media := newConversationFixture(t)
	farmer := f.profile(t, "farmer-1", entity.RoleFarmer)
	buyer := f.profile(t, "buyer-1", entity.RoleBuyer)

	tests := []struct {
		name  string
		input SendMessageInput
		code  string
	}{
		{"to self", SendMessageInput{ReceiverID: buyer.UserID, Content: "hi"}, errors.CodeInvalidInput},
		{"empty text", SendMessageInput{ReceiverID: farmer.UserID, Content: "  "}, errors.CodeInvalidInput},
		{"unknown type", SendMessageInput{ReceiverID: farmer.UserID, Type: "video", Content: "hi"}, errors.CodeInvalidInput},
		{"unknown receiver", SendMessageInput{ReceiverID: "ghost", Content: "hi"}, errors.CodeNotFound},
		{"image without payload", SendMessageInput{ReceiverID: farmer.UserID, Type: entity.MessageImage}, errors.CodeInvalidInput},
		{"voice with image payload", SendMessageInput{ReceiverID: farmer.UserID, Type: entity.MessageVoice, Media: []byte{1}, MediaContentType: "image/png"}, errors.CodeInvalidInput},
		{"unknown product", SendMessageInput{ReceiverID: farmer.UserID, Content: "hi", ProductID: "nope"}, errors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.SendMessage(ctx, buyer, tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
	assert.Empty(t, media.uploads)
}

func TestSendMediaMessageUploadsPayload(t *testing.T) {
	ctx := context.Background()
	f, uc, media := newConversationFixture(t)
	farmer := f.profile(t, "farmer-1", entity.RoleFarmer)
	buyer := f.profile(t, "buyer-1", entity.RoleBuyer)

	sent, err := uc.SendMessage(ctx, farmer, SendMessageInput{
		ReceiverID:       buyer.UserID,
		Type:             entity.MessageVoice,
		Media:            []byte("OggS"),
		MediaContentType: "audio/ogg",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/messages/voice/1", sent.MediaURL)
	assert.Equal(t, []string{"messages/voice"}, media.uploads)
}

func TestSendMessageRateLimited(t *testing.T) {
	ctx := context.Background()
	f, uc, _ := newConversationFixture(t)
	farmer := f.profile(t, "farmer-1", entity.RoleFarmer)
	buyer := f.profile(t, "buyer-1", entity.RoleBuyer)

	limiter := ratelimit.NewRateLimiter()
	limiter.SetPolicy(ratelimit.ActionSendMessage, ratelimit.Policy{Every: time.Hour, Burst: 1})
	uc.rateLimiter = limiter

	_, err := uc.SendMessage(ctx, buyer, SendMessageInput{ReceiverID: farmer.UserID, Content: "one"})
	require.NoError(t, err)

	_, err = uc.SendMessage(ctx, buyer, SendMessageInput{ReceiverID: farmer.UserID, Content: "two"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeTooManyRequests))
}

func TestGetConversationsReadsPastOnePage(t *testing.T) {
	ctx := context.Background()
	f, uc, _ := newConversationFixture(t)
	viewer := f.profile(t, "a", entity.RoleFarmer)

	require.NoError(t, f.repos.Messages.Create(ctx, msg("c-0", "c", "a", 0, false), nil))
	const flood = 2*conversationPageSize + 1
	for i := 1; i <= flood; i++ {
		m := msg(fmt.Sprintf("b-%04d", i), "b", "a", time.Duration(i)*time.Second, false)
		require.NoError(t, f.repos.Messages.Create(ctx, m, nil))
	}

	convs, err := uc.GetConversations(ctx, viewer)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, "b", convs[0].OtherPartyID)
	assert.Equal(t, flood, convs[0].UnreadCount)
	assert.Equal(t, fmt.Sprintf("b-%04d", flood), convs[0].LastMessage.ID)

	assert.Equal(t, "c", convs[1].OtherPartyID)
	assert.Equal(t, 1, convs[1].UnreadCount)
	assert.Equal(t, "c-0", convs[1].LastMessage.ID)
}

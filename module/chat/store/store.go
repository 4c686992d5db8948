package store

import (
	"context"
	"time"

	chatmodel "Parley/module/chat/model"
	"Parley/module/delivery/receipt"
	"Parley/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	ConvColl    *mongo.Collection
	MsgColl     *mongo.Collection
	ReceiptColl *mongo.Collection
	UserColl    *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		ConvColl:    db.Collection(chatmodel.ConvCollection),
		MsgColl:     db.Collection(chatmodel.MsgCollection),
		ReceiptColl: db.Collection(chatmodel.ReceiptCollection),
		UserColl:    db.Collection(chatmodel.UserCollection),
	}
}

// EnsureIndexes creates the indexes the store's writes rely on, notably
// the unique (message_id, user_id) pair on receipts.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.ReceiptColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "message_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errs.WrapMsg(err, "create receipt index")
	}
	_, err = s.MsgColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return errs.WrapMsg(err, "create message index")
	}
	_, err = s.ConvColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errs.WrapMsg(err, "create conversation index")
}

// GetConversation loads a conversation; ErrRecordNotFound when absent.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (*chatmodel.Conversation, error) {
	var c chatmodel.Conversation
	err := s.ConvColl.FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("conversation", "id", conversationID)
	}
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &c, nil
}

func (s *Store) UpsertConversation(ctx context.Context, c *chatmodel.Conversation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.ConvColl.UpdateOne(ctx,
		bson.M{"conversation_id": c.ConversationID},
		bson.M{"$set": c},
		options.Update().SetUpsert(true))
	return errs.Wrap(err)
}

func (s *Store) InsertMessage(ctx context.Context, m *chatmodel.MessageModel) error {
	_, err := s.MsgColl.InsertOne(ctx, m)
	return errs.Wrap(err)
}

// GetMessage loads a message; ErrRecordNotFound when absent.
func (s *Store) GetMessage(ctx context.Context, messageID string) (*chatmodel.MessageModel, error) {
	var m chatmodel.MessageModel
	err := s.MsgColl.FindOne(ctx, bson.M{"message_id": messageID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("message", "id", messageID)
	}
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &m, nil
}

// ListMessages returns a conversation's history in creation order.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int64) ([]*chatmodel.MessageModel, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := s.MsgColl.Find(ctx, bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.M{"created_at": 1}).SetLimit(limit))
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []*chatmodel.MessageModel
	for cur.Next(ctx) {
		var m chatmodel.MessageModel
		if err := cur.Decode(&m); err != nil {
			continue
		}
		out = append(out, &m)
	}
	return out, nil
}

// InsertReceipts creates the per-member receipt rows for a new message.
func (s *Store) InsertReceipts(ctx context.Context, conversationID, messageID, senderID string, members []string, at time.Time) error {
	docs := make([]any, 0, len(members))
	for _, uid := range members {
		st := receipt.StatusSent
		if uid == senderID {
			st = receipt.StatusRead
		}
		docs = append(docs, chatmodel.ReceiptModel{
			MessageID:      messageID,
			UserID:         uid,
			ConversationID: conversationID,
			Status:         int(st),
			UpdatedAt:      at,
		})
	}
	if len(docs) == 0 {
		return nil
	}
	_, err := s.ReceiptColl.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return errs.Wrap(err)
}

// SaveReceiptStatus advances one receipt row. The $lt guard makes the
// write monotonic inside MongoDB itself, so a racing DELIVERED can never
// overwrite a READ regardless of arrival order.
func (s *Store) SaveReceiptStatus(ctx context.Context, messageID, userID string, st receipt.Status, at time.Time) error {
	_, err := s.ReceiptColl.UpdateOne(ctx,
		bson.M{"message_id": messageID, "user_id": userID, "status": bson.M{"$lt": int(st)}},
		bson.M{"$set": bson.M{"status": int(st), "updated_at": at}})
	return errs.Wrap(err)
}

func (s *Store) ListReceipts(ctx context.Context, messageID string) ([]*chatmodel.ReceiptModel, error) {
	cur, err := s.ReceiptColl.Find(ctx, bson.M{"message_id": messageID},
		options.Find().SetSort(bson.M{"user_id": 1}))
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []*chatmodel.ReceiptModel
	for cur.Next(ctx) {
		var r chatmodel.ReceiptModel
		if err := cur.Decode(&r); err != nil {
			continue
		}
		out = append(out, &r)
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*chatmodel.UserModel, error) {
	var u chatmodel.UserModel
	err := s.UserColl.FindOne(ctx, bson.M{"user_id": userID}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("user", "id", userID)
	}
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &u, nil
}

func (s *Store) UpsertUser(ctx context.Context, u *chatmodel.UserModel) error {
	_, err := s.UserColl.UpdateOne(ctx,
		bson.M{"user_id": u.UserID},
		bson.M{"$set": u},
		options.Update().SetUpsert(true))
	return errs.Wrap(err)
}

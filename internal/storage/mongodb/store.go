// Package mongodb implements storage interfaces using MongoDB
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-iso20022/internal/storage"
)

// Store implements storage.Store using MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	gridfs *gridfs.Bucket

	records *mongo.Collection
}

// Config holds MongoDB connection settings
type Config struct {
	URI            string
	Database       string
	Collection     string
	GridFSBucket   string
	ChunkSizeBytes int32
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)

	// GridFS bucket for raw documents
	bucketName := cfg.GridFSBucket
	if bucketName == "" {
		bucketName = "documents"
	}
	chunkSize := cfg.ChunkSizeBytes
	if chunkSize == 0 {
		chunkSize = 261120 // 255KB
	}
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().
		SetName(bucketName).
		SetChunkSizeBytes(chunkSize))
	if err != nil {
		return nil, fmt.Errorf("creating GridFS bucket: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "processing_records"
	}

	s := &Store{
		client:  client,
		db:      db,
		gridfs:  bucket,
		records: db.Collection(collection),
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.records.Indexes().CreateMany(ctx, indexModels())
	if err != nil {
		return fmt.Errorf("creating record indexes: %w", err)
	}
	return nil
}

func indexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "message_id", Value: 1}, {Key: "received_at", Value: -1}}},
		{Keys: bson.D{{Key: "family", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "received_at", Value: -1}}},
	}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Records

func (s *Store) SaveRecord(ctx context.Context, rec *storage.ProcessingRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.records.ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*storage.ProcessingRecord, error) {
	return s.findOne(ctx, bson.M{"_id": id}, nil)
}

func (s *Store) GetRecordByMessageID(ctx context.Context, messageID string) (*storage.ProcessingRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "received_at", Value: -1}})
	return s.findOne(ctx, bson.M{"message_id": messageID}, opts)
}

func (s *Store) findOne(ctx context.Context, query bson.M, opts *options.FindOneOptions) (*storage.ProcessingRecord, error) {
	var rec storage.ProcessingRecord
	var err error
	if opts != nil {
		err = s.records.FindOne(ctx, query, opts).Decode(&rec)
	} else {
		err = s.records.FindOne(ctx, query).Decode(&rec)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListRecords(ctx context.Context, filter *storage.RecordFilter) ([]*storage.ProcessingRecord, error) {
	cursor, err := s.records.Find(ctx, recordQuery(filter), findOptions(filter))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*storage.ProcessingRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) CountRecords(ctx context.Context, filter *storage.RecordFilter) (int64, error) {
	return s.records.CountDocuments(ctx, recordQuery(filter))
}

func recordQuery(filter *storage.RecordFilter) bson.M {
	query := bson.M{}
	if filter == nil {
		return query
	}
	if filter.Family != "" {
		query["family"] = filter.Family
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Since != nil {
		query["received_at"] = bson.M{"$gte": *filter.Since}
	}
	return query
}

func findOptions(filter *storage.RecordFilter) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			opts.SetLimit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			opts.SetSkip(int64(filter.Offset))
		}
	}
	return opts
}

// Documents

func (s *Store) StoreDocument(ctx context.Context, doc *storage.DocumentData) (string, error) {
	if doc.Checksum == "" {
		doc.Checksum = storage.Checksum(doc.Data)
	}

	fileID := primitive.NewObjectID()
	uploadStream, err := s.gridfs.OpenUploadStreamWithID(fileID, documentFilename(doc), options.GridFSUpload().SetMetadata(documentMetadata(doc)))
	if err != nil {
		return "", fmt.Errorf("opening upload stream: %w", err)
	}

	if _, err := uploadStream.Write(doc.Data); err != nil {
		uploadStream.Abort()
		return "", fmt.Errorf("writing document: %w", err)
	}
	if err := uploadStream.Close(); err != nil {
		return "", fmt.Errorf("closing upload stream: %w", err)
	}

	doc.ID = fileID.Hex()
	return doc.ID, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*storage.DocumentData, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	downloadStream, err := s.gridfs.OpenDownloadStream(objID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening download stream: %w", err)
	}
	defer downloadStream.Close()

	data, err := io.ReadAll(downloadStream)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	doc := documentFromMetadata(downloadStream.GetFile().Metadata)
	doc.ID = id
	doc.Data = data
	return doc, nil
}

func documentFilename(doc *storage.DocumentData) string {
	return fmt.Sprintf("%s/%s", doc.Kind, doc.MessageID)
}

func documentMetadata(doc *storage.DocumentData) bson.M {
	return bson.M{
		"kind":         string(doc.Kind),
		"message_id":   doc.MessageID,
		"content_type": doc.ContentType,
		"checksum":     doc.Checksum,
	}
}

func documentFromMetadata(metadata bson.Raw) *storage.DocumentData {
	doc := &storage.DocumentData{}
	if metadata == nil {
		return doc
	}
	kind, _ := metadata.Lookup("kind").StringValueOK()
	doc.Kind = storage.DocumentKind(kind)
	doc.MessageID, _ = metadata.Lookup("message_id").StringValueOK()
	doc.ContentType, _ = metadata.Lookup("content_type").StringValueOK()
	doc.Checksum, _ = metadata.Lookup("checksum").StringValueOK()
	return doc
}

var _ storage.Store = (*Store)(nil)

package databases

// go generate: mockery --name HealthRecordDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/etelemed/etelemed-api/models"
)

const healthRecordName = "healthRecords"

// HealthRecordDatabase contains the methods to use with the health record database
type HealthRecordDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.HealthRecord, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.HealthRecord, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type healthRecordDatabase struct {
	db DatabaseHelper
}

// NewHealthRecordDatabase initializes a new instance of health record database with the provided db connection
func NewHealthRecordDatabase(db DatabaseHelper) HealthRecordDatabase {
	return &healthRecordDatabase{
		db: db,
	}
}

func (h *healthRecordDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.HealthRecord, error) {
	record := &models.HealthRecord{}
	err := h.db.Collection(healthRecordName).FindOne(ctx, filter, opts...).Decode(&record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (h *healthRecordDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.HealthRecord, error) {
	var records []models.HealthRecord
	cr := h.db.Collection(healthRecordName).Find(ctx, filter, opts...)
	err := cr.Decode(&records)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (h *healthRecordDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return h.db.Collection(healthRecordName).InsertOne(ctx, document, opts...)
}

func (h *healthRecordDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return h.db.Collection(healthRecordName).CountDocuments(ctx, filter, opts...)
}

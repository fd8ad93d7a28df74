package databases

// go generate: mockery --name ConsultationMessageDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/etelemed/etelemed-api/models"
)

const consultationMessageName = "consultationMessages"

// ConsultationMessageDatabase contains the methods to use with the consultation message database
type ConsultationMessageDatabase interface {
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.ConsultationMessage, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type consultationMessageDatabase struct {
	db DatabaseHelper
}

// NewConsultationMessageDatabase initializes a new instance of consultation message database with the provided db connection
func NewConsultationMessageDatabase(db DatabaseHelper) ConsultationMessageDatabase {
	return &consultationMessageDatabase{
		db: db,
	}
}

func (c *consultationMessageDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ConsultationMessage, error) {
	var messages []models.ConsultationMessage
	cr := c.db.Collection(consultationMessageName).Find(ctx, filter, opts...)
	err := cr.Decode(&messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *consultationMessageDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return c.db.Collection(consultationMessageName).InsertOne(ctx, document, opts...)
}

func (c *consultationMessageDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(consultationMessageName).CountDocuments(ctx, filter, opts...)
}

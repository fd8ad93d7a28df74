package databases

// go generate: mockery --name ConsultationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/etelemed/etelemed-api/models"
)

const consultationName = "consultations"

// ConsultationDatabase contains the methods to use with the consultation database
type ConsultationDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Consultation, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Consultation, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*models.Consultation, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type consultationDatabase struct {
	db DatabaseHelper
}

// NewConsultationDatabase initializes a new instance of consultation database with the provided db connection
func NewConsultationDatabase(db DatabaseHelper) ConsultationDatabase {
	return &consultationDatabase{
		db: db,
	}
}

func (c *consultationDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Consultation, error) {
	consultation := &models.Consultation{}
	err := c.db.Collection(consultationName).FindOne(ctx, filter, opts...).Decode(&consultation)
	if err != nil {
		return nil, err
	}
	return consultation, nil
}

func (c *consultationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Consultation, error) {
	var consultations []models.Consultation
	cr := c.db.Collection(consultationName).Find(ctx, filter, opts...)
	err := cr.Decode(&consultations)
	if err != nil {
		return nil, err
	}
	return consultations, nil
}

func (c *consultationDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return c.db.Collection(consultationName).InsertOne(ctx, document, opts...)
}

func (c *consultationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*models.Consultation, error) {
	_, err := c.db.Collection(consultationName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	consultation := &models.Consultation{}
	err = c.db.Collection(consultationName).FindOne(ctx, filter).Decode(&consultation)
	if err != nil {
		return nil, err
	}
	return consultation, nil
}

func (c *consultationDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(consultationName).CountDocuments(ctx, filter, opts...)
}

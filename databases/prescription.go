package databases

// go generate: mockery --name PrescriptionDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/etelemed/etelemed-api/models"
)

const prescriptionName = "prescriptions"

// PrescriptionDatabase contains the methods to use with the prescription database
type PrescriptionDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Prescription, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Prescription, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*models.Prescription, error)
}

type prescriptionDatabase struct {
	db DatabaseHelper
}

// NewPrescriptionDatabase initializes a new instance of prescription database with the provided db connection
func NewPrescriptionDatabase(db DatabaseHelper) PrescriptionDatabase {
	return &prescriptionDatabase{
		db: db,
	}
}

func (p *prescriptionDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Prescription, error) {
	prescription := &models.Prescription{}
	err := p.db.Collection(prescriptionName).FindOne(ctx, filter, opts...).Decode(&prescription)
	if err != nil {
		return nil, err
	}
	return prescription, nil
}

func (p *prescriptionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Prescription, error) {
	var prescriptions []models.Prescription
	cr := p.db.Collection(prescriptionName).Find(ctx, filter, opts...)
	err := cr.Decode(&prescriptions)
	if err != nil {
		return nil, err
	}
	return prescriptions, nil
}

func (p *prescriptionDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return p.db.Collection(prescriptionName).InsertOne(ctx, document, opts...)
}

func (p *prescriptionDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*models.Prescription, error) {
	_, err := p.db.Collection(prescriptionName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	prescription := &models.Prescription{}
	err = p.db.Collection(prescriptionName).FindOne(ctx, filter).Decode(&prescription)
	if err != nil {
		return nil, err
	}
	return prescription, nil
}

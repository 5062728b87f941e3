package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	tanksCollection     = "tanks"
	processesCollection = "processes"
)

// Connect opens a client and pings the server.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// NewRepositories builds the two-collection store on db. It fails when the
// indexes, including the unique (tankId, serialNo) one, cannot be created.
func NewRepositories(ctx context.Context, db *mongo.Database) (*repository.Repositories, error) {
	tanks := &TankRepository{tanks: db.Collection(tanksCollection), processes: db.Collection(processesCollection)}
	processes := &ProcessRepository{collection: db.Collection(processesCollection)}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := processes.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return &repository.Repositories{Tank: tanks, Process: processes}, nil
}

type tankDocument struct {
	ID           string               `bson:"_id"`
	TankType     string               `bson:"tankType"`
	Capacity     primitive.Decimal128 `bson:"capacity"`
	DeliveryDate time.Time            `bson:"deliveryDate"`
	ClientName   string               `bson:"clientName"`
	Status       string               `bson:"status"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

func toTankDocument(t *entity.Tank) (*tankDocument, error) {
	capacity, err := primitive.ParseDecimal128(t.Capacity.String())
	if err != nil {
		return nil, fmt.Errorf("capacity %s: %w", t.Capacity, err)
	}
	return &tankDocument{
		ID:           t.ID,
		TankType:     t.TankType,
		Capacity:     capacity,
		DeliveryDate: t.DeliveryDate,
		ClientName:   t.ClientName,
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}, nil
}

func (d *tankDocument) toEntity() (*entity.Tank, error) {
	capacity, err := decimal.NewFromString(d.Capacity.String())
	if err != nil {
		return nil, fmt.Errorf("capacity %s: %w", d.Capacity, err)
	}
	return &entity.Tank{
		ID:           d.ID,
		TankType:     d.TankType,
		Capacity:     capacity,
		DeliveryDate: d.DeliveryDate,
		ClientName:   d.ClientName,
		Status:       entity.Status(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

type processDocument struct {
	ID               string    `bson:"_id"`
	TankID           string    `bson:"tankId"`
	TankName         string    `bson:"tankName"`
	ProcessName      string    `bson:"processName"`
	SerialNo         string    `bson:"serialNo"`
	Batch            int       `bson:"batch"`
	Position         int       `bson:"position"`
	SFGCode          string    `bson:"sfgCode"`
	Workers          int       `bson:"workers"`
	TimeToComplete   float64   `bson:"timeToComplete"`
	Status           string    `bson:"status"`
	Progress         int       `bson:"progress"`
	QCCompleted      bool      `bson:"qcCompleted"`
	FinalQCCompleted bool      `bson:"finalQcCompleted"`
	AddedAt          time.Time `bson:"addedAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

func toProcessDocument(p *entity.Process) *processDocument {
	return &processDocument{
		ID:               p.ID,
		TankID:           p.TankID,
		TankName:         p.TankName,
		ProcessName:      p.ProcessName,
		SerialNo:         p.SerialNo,
		Batch:            p.Batch,
		Position:         p.Position,
		SFGCode:          p.SFGCode,
		Workers:          p.Workers,
		TimeToComplete:   p.TimeToComplete,
		Status:           string(p.Status),
		Progress:         p.Progress,
		QCCompleted:      p.QCCompleted,
		FinalQCCompleted: p.FinalQCCompleted,
		AddedAt:          p.AddedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (d *processDocument) toEntity() entity.Process {
	return entity.Process{
		ID:               d.ID,
		TankID:           d.TankID,
		TankName:         d.TankName,
		ProcessName:      d.ProcessName,
		SerialNo:         d.SerialNo,
		Batch:            d.Batch,
		Position:         d.Position,
		SFGCode:          d.SFGCode,
		Workers:          d.Workers,
		TimeToComplete:   d.TimeToComplete,
		Status:           entity.Status(d.Status),
		Progress:         d.Progress,
		QCCompleted:      d.QCCompleted,
		FinalQCCompleted: d.FinalQCCompleted,
		AddedAt:          d.AddedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// mutableFields is the $set document for a process; _id and addedAt never change.
func mutableFields(p *entity.Process, now time.Time) bson.M {
	return bson.M{
		"tankName":         p.TankName,
		"processName":      p.ProcessName,
		"workers":          p.Workers,
		"timeToComplete":   p.TimeToComplete,
		"status":           string(p.Status),
		"progress":         p.Progress,
		"qcCompleted":      p.QCCompleted,
		"finalQcCompleted": p.FinalQCCompleted,
		"updatedAt":        now,
	}
}

type TankRepository struct {
	tanks     *mongo.Collection
	processes *mongo.Collection
}

// CreateWithProcesses inserts the tank and then its processes. A standalone
// server has no multi-document transactions, so a failure in the second
// insert leaves the tank stored with a partial batch.
func (r *TankRepository) CreateWithProcesses(ctx context.Context, tank *entity.Tank, processes []*entity.Process) error {
	doc, err := toTankDocument(tank)
	if err != nil {
		return err
	}
	if _, err := r.tanks.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert tank: %w", err)
	}
	if len(processes) == 0 {
		return nil
	}
	if err := insertProcesses(ctx, r.processes, processes); err != nil {
		return fmt.Errorf("tank %s stored but processes failed: %w", tank.ID, err)
	}
	return nil
}

func (r *TankRepository) FindByID(ctx context.Context, id string) (*entity.Tank, error) {
	var doc tankDocument
	err := r.tanks.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toEntity()
}

func (r *TankRepository) List(ctx context.Context) ([]entity.Tank, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.tanks.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []tankDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	tanks := make([]entity.Tank, 0, len(docs))
	for i := range docs {
		t, err := docs[i].toEntity()
		if err != nil {
			return nil, err
		}
		tanks = append(tanks, *t)
	}
	return tanks, nil
}

func (r *TankRepository) UpdateStatus(ctx context.Context, id string, status entity.Status) error {
	res, err := r.tanks.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(status), "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type ProcessRepository struct {
	collection *mongo.Collection
}

func (r *ProcessRepository) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tankId", Value: 1}, {Key: "serialNo", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "addedAt", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create process indexes: %w", err)
	}
	return nil
}

func insertProcesses(ctx context.Context, coll *mongo.Collection, processes []*entity.Process) error {
	docs := make([]interface{}, len(processes))
	for i, p := range processes {
		docs[i] = toProcessDocument(p)
	}
	_, err := coll.InsertMany(ctx, docs)
	return err
}

func (r *ProcessRepository) CreateBatch(ctx context.Context, processes []*entity.Process) error {
	if len(processes) == 0 {
		return nil
	}
	return insertProcesses(ctx, r.collection, processes)
}

func (r *ProcessRepository) FindByID(ctx context.Context, id string) (*entity.Process, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ProcessRepository) FindByTankAndSerial(ctx context.Context, tankID, serialNo string) (*entity.Process, error) {
	return r.findOne(ctx, bson.M{"tankId": tankID, "serialNo": serialNo})
}

func (r *ProcessRepository) findOne(ctx context.Context, filter bson.M) (*entity.Process, error) {
	var doc processDocument
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p := doc.toEntity()
	return &p, nil
}

func (r *ProcessRepository) List(ctx context.Context, filter repository.ProcessFilter) ([]entity.Process, error) {
	query := bson.M{}
	if filter.TankID != "" {
		query["tankId"] = filter.TankID
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.QCCompleted != nil {
		query["qcCompleted"] = *filter.QCCompleted
	}
	if filter.FinalQCCompleted != nil {
		query["finalQcCompleted"] = *filter.FinalQCCompleted
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "addedAt", Value: 1},
		{Key: "tankId", Value: 1},
		{Key: "batch", Value: 1},
		{Key: "position", Value: 1},
		{Key: "_id", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []processDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	processes := make([]entity.Process, len(docs))
	for i := range docs {
		processes[i] = docs[i].toEntity()
	}
	return processes, nil
}

func (r *ProcessRepository) Save(ctx context.Context, process *entity.Process) error {
	now := time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": process.ID},
		bson.M{"$set": mutableFields(process, now)},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	process.UpdatedAt = now
	return nil
}

func (r *ProcessRepository) SaveAll(ctx context.Context, processes []*entity.Process) error {
	if len(processes) == 0 {
		return nil
	}
	now := time.Now()
	models := make([]mongo.WriteModel, len(processes))
	for i, p := range processes {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": p.ID}).
			SetUpdate(bson.M{"$set": mutableFields(p, now)})
	}
	res, err := r.collection.BulkWrite(ctx, models)
	if err != nil {
		return err
	}
	if int(res.MatchedCount) < len(processes) {
		return repository.ErrNotFound
	}
	return nil
}

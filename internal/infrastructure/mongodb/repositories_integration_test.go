//go:build integration

package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/internal/infrastructure/eventing"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	pkgmongo "github.com/wms-platform/task-engine/pkg/mongodb"
	pkgtesting "github.com/wms-platform/task-engine/pkg/testing"
)

var base = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	container *pkgtesting.MongoDBContainer
	client    *mongo.Client
	store     *Store
}

func TestRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}

func (s *RepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := pkgtesting.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	client, err := container.GetClient(s.ctx)
	s.Require().NoError(err)
	s.client = client
}

func (s *RepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Disconnect(s.ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Close(s.ctx))
	}
}

func (s *RepositoryIntegrationTestSuite) SetupTest() {
	db := s.client.Database("task_engine_test")
	s.Require().NoError(db.Drop(s.ctx))

	instrumented := pkgmongo.NewInstrumentedClient(pkgmongo.Wrap(s.client, "task_engine_test"), nil, nil)
	mapper := eventing.NewMapper(cloudevents.NewEventFactory("task-engine-test"))
	s.store = NewStore(instrumented, mapper)
	s.Require().NoError(s.store.EnsureIndexes(s.ctx))
}

func (s *RepositoryIntegrationTestSuite) newTask(id string, createdAt time.Time, mutate func(*domain.NewTaskParams)) *domain.Task {
	params := domain.NewTaskParams{
		TaskID:      id,
		WarehouseID: "WH-1",
		Type:        domain.TaskTypePick,
		ProductID:   "SKU-1",
		Quantity:    2,
	}
	if mutate != nil {
		mutate(&params)
	}
	task, err := domain.NewTask(params, createdAt)
	s.Require().NoError(err)
	return task
}

func (s *RepositoryIntegrationTestSuite) TestTaskSaveWritesOutboxInTransaction() {
	task := s.newTask("T1", base, nil)
	s.Require().NoError(s.store.Tasks.Save(s.ctx, task))
	s.Empty(task.GetDomainEvents())

	found, err := s.store.Tasks.FindByID(s.ctx, "T1")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(domain.TaskStatusPending, found.Status)
	s.Equal(base, found.CreatedAt)

	rows, err := s.store.Outbox.FindByAggregateID(s.ctx, "T1")
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(cloudevents.TaskCreated, rows[0].EventType)

	missing, err := s.store.Tasks.FindByID(s.ctx, "T404")
	s.NoError(err)
	s.Nil(missing)
}

func (s *RepositoryIntegrationTestSuite) TestSaveClearsAssigneeOnReplace() {
	task := s.newTask("T1", base, nil)
	s.Require().NoError(task.Assign("W1", base))
	s.Require().NoError(s.store.Tasks.Save(s.ctx, task))

	s.Require().NoError(task.Cancel("short", base.Add(time.Minute)))
	s.Require().NoError(s.store.Tasks.Save(s.ctx, task))

	found, err := s.store.Tasks.FindByID(s.ctx, "T1")
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusCancelled, found.Status)
	s.Empty(found.AssignedTo)
}

func (s *RepositoryIntegrationTestSuite) TestClaimIsConditional() {
	s.Require().NoError(s.store.Tasks.Save(s.ctx, s.newTask("T1", base, nil)))

	first, err := s.store.Tasks.FindByID(s.ctx, "T1")
	s.Require().NoError(err)
	second, err := s.store.Tasks.FindByID(s.ctx, "T1")
	s.Require().NoError(err)

	s.Require().NoError(first.Assign("W1", base))
	s.Require().NoError(second.Assign("W2", base))

	s.Require().NoError(s.store.Tasks.Claim(s.ctx, first))
	s.ErrorIs(s.store.Tasks.Claim(s.ctx, second), domain.ErrClaimConflict)

	stored, err := s.store.Tasks.FindByID(s.ctx, "T1")
	s.Require().NoError(err)
	s.Equal("W1", stored.AssignedTo)
	s.Equal(domain.TaskStatusAssigned, stored.Status)

	ghost := s.newTask("T404", base, nil)
	s.Require().NoError(ghost.Assign("W1", base))
	s.ErrorIs(s.store.Tasks.Claim(s.ctx, ghost), domain.ErrNotFound)
}

func (s *RepositoryIntegrationTestSuite) TestSaveRejectsStaleCopies() {
	s.Require().NoError(s.store.Tasks.Save(s.ctx, s.newTask("T1", base, nil)))

	started, err := s.store.Tasks.FindByID(s.ctx, "T1")
	s.Require().NoError(err)
	stale, err := s.store.Tasks.FindByID(s.ctx, "T1")
	s.Require().NoError(err)

	s.Require().NoError(started.Start("W1", nil, base))
	s.Require().NoError(s.store.Tasks.Save(s.ctx, started))

	s.Require().NoError(stale.Cancel("wave cancelled", base))
	s.ErrorIs(s.store.Tasks.SaveAll(s.ctx, []*domain.Task{stale}), domain.ErrConcurrentModification)
	s.Equal(int64(1), stale.Version)

	stored, err := s.store.Tasks.FindByID(s.ctx, "T1")
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusInProgress, stored.Status)
	s.Equal(int64(2), stored.Version)

	duplicate := s.newTask("T1", base, nil)
	s.ErrorIs(s.store.Tasks.Save(s.ctx, duplicate), domain.ErrConcurrentModification)

	wave, err := domain.NewWave("WAVE-1", domain.WaveConfig{WarehouseID: "WH-1"}, base)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Waves.Save(s.ctx, wave))
	staleWave, err := s.store.Waves.FindByNumber(s.ctx, "WAVE-1")
	s.Require().NoError(err)

	s.Require().NoError(wave.Cancel("no stock", domain.CancelPolicyLetFinish, base))
	s.Require().NoError(s.store.Waves.Save(s.ctx, wave))

	staleWave.CreatedBy = "late writer"
	s.ErrorIs(s.store.Waves.Save(s.ctx, staleWave), domain.ErrConcurrentModification)

	storedWave, err := s.store.Waves.FindByNumber(s.ctx, "WAVE-1")
	s.Require().NoError(err)
	s.Equal(domain.WaveStatusCancelled, storedWave.Status)
}

func (s *RepositoryIntegrationTestSuite) TestFindCandidates() {
	s.Require().NoError(s.store.Tasks.SaveAll(s.ctx, []*domain.Task{
		s.newTask("T-LATE", base.Add(time.Minute), nil),
		s.newTask("T-EARLY", base, nil),
		s.newTask("T-FORK", base, func(p *domain.NewTaskParams) { p.RequiredEquipment = "FORKLIFT" }),
		s.newTask("T-COUNT", base, func(p *domain.NewTaskParams) { p.Type = domain.TaskTypeCount }),
		s.newTask("T-OTHER", base, func(p *domain.NewTaskParams) { p.WarehouseID = "WH-2" }),
	}))

	mine := s.newTask("T-MINE", base, nil)
	s.Require().NoError(mine.Assign("W9", base))
	s.Require().NoError(s.store.Tasks.Save(s.ctx, mine))

	candidates, err := s.store.Tasks.FindCandidates(s.ctx, domain.CandidateQuery{
		WorkerID:    "W1",
		WarehouseID: "WH-1",
		Types:       []domain.TaskType{domain.TaskTypePick},
		Equipment:   "forklift",
	})
	s.Require().NoError(err)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.TaskID)
	}
	s.Equal([]string{"T-EARLY", "T-FORK", "T-LATE"}, ids)

	carts, err := s.store.Tasks.FindCandidates(s.ctx, domain.CandidateQuery{WorkerID: "W1", WarehouseID: "WH-1", Equipment: "CART"})
	s.Require().NoError(err)
	s.Len(carts, 3)
}

func (s *RepositoryIntegrationTestSuite) TestAggregateCompletedPicksAndCount() {
	var tasks []*domain.Task
	for i, product := range []string{"FAST", "FAST", "SLOW"} {
		task := s.newTask(product+string(rune('A'+i)), base, func(p *domain.NewTaskParams) {
			p.ProductID = product
			p.WaveID = "WAVE-1"
		})
		s.Require().NoError(task.Start("W1", nil, base))
		s.Require().NoError(task.Complete("W1", domain.CompletionResult{QuantityCompleted: 2}, base.Add(time.Minute)))
		tasks = append(tasks, task)
	}
	tasks = append(tasks, s.newTask("OPEN", base, func(p *domain.NewTaskParams) { p.WaveID = "WAVE-1" }))
	s.Require().NoError(s.store.Tasks.SaveAll(s.ctx, tasks))

	picks, err := s.store.Tasks.AggregateCompletedPicks(s.ctx, "WH-1", base, base.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal([]domain.ProductPicks{
		{ProductID: "FAST", PickCount: 2, Quantity: 4},
		{ProductID: "SLOW", PickCount: 1, Quantity: 2},
	}, picks)

	outside, err := s.store.Tasks.AggregateCompletedPicks(s.ctx, "WH-1", base.Add(time.Hour), base.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Empty(outside)

	open, err := s.store.Tasks.CountByWave(s.ctx, "WAVE-1", domain.OutstandingTaskStatuses)
	s.Require().NoError(err)
	s.Equal(int64(1), open)
}

func (s *RepositoryIntegrationTestSuite) TestWavesNewestFirst() {
	for i, number := range []string{"WAVE-1", "WAVE-2"} {
		wave, err := domain.NewWave(number, domain.WaveConfig{WarehouseID: "WH-1"}, base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(err)
		s.Require().NoError(s.store.Waves.Save(s.ctx, wave))
	}

	waves, err := s.store.Waves.Find(s.ctx, domain.WaveFilter{WarehouseID: "WH-1"})
	s.Require().NoError(err)
	s.Require().Len(waves, 2)
	s.Equal("WAVE-2", waves[0].WaveNumber)

	found, err := s.store.Waves.FindByNumber(s.ctx, "WAVE-1")
	s.Require().NoError(err)
	s.Equal(domain.WaveStatusDraft, found.Status)

	rows, err := s.store.Outbox.FindByAggregateID(s.ctx, "WAVE-1")
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *RepositoryIntegrationTestSuite) TestPicklistsAndLinks() {
	order := domain.Order{OrderID: "ORD-1", WarehouseID: "WH-1", Items: []domain.OrderItem{{ItemID: "I1", ProductID: "SKU-1", Quantity: 2}}}
	picklist := domain.NewPicklistForOrder("PL-1", order, base)
	s.Require().NoError(s.store.Picklists.Save(s.ctx, picklist))

	byOrder, err := s.store.Picklists.FindByOrderID(s.ctx, "ORD-1")
	s.Require().NoError(err)
	s.Require().NotNil(byOrder)
	s.Equal("PL-1", byOrder.PicklistID)

	s.Require().NoError(s.store.WavePicklists.SaveAll(s.ctx, []*domain.WavePicklist{
		{WaveNumber: "WAVE-1", PicklistID: "PL-2", OrderID: "ORD-2", Sequence: 2, CreatedAt: base},
		{WaveNumber: "WAVE-1", PicklistID: "PL-1", OrderID: "ORD-1", Sequence: 1, CreatedAt: base},
	}))
	links, err := s.store.WavePicklists.FindByWave(s.ctx, "WAVE-1")
	s.Require().NoError(err)
	s.Require().Len(links, 2)
	s.Equal("PL-1", links[0].PicklistID)

	s.Require().NoError(s.store.WavePicklists.SaveAll(s.ctx, []*domain.WavePicklist{
		{WaveNumber: "WAVE-0", PicklistID: "PL-1", OrderID: "ORD-1", Sequence: 1, CreatedAt: base},
	}))
	byOrderLinks, err := s.store.WavePicklists.FindByOrder(s.ctx, "ORD-1")
	s.Require().NoError(err)
	s.Require().Len(byOrderLinks, 2)
	s.Equal("WAVE-0", byOrderLinks[0].WaveNumber)
	s.Equal("WAVE-1", byOrderLinks[1].WaveNumber)
}

func (s *RepositoryIntegrationTestSuite) TestDirectoryAndSequences() {
	s.Require().NoError(s.store.Directory.SaveWarehouse(s.ctx, "WH-1"))
	s.Require().NoError(s.store.Directory.SaveCarrier(s.ctx, "UPS"))
	s.Require().NoError(s.store.Directory.SaveBin(s.ctx, domain.Bin{Code: "A1-B1", WarehouseID: "WH-1", ZoneID: "Z1", ZoneType: domain.ZoneTypePicking, ProductID: "SKU-1"}))

	ok, err := s.store.Directory.WarehouseExists(s.ctx, "WH-1")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.Directory.CarrierExists(s.ctx, "FEDEX")
	s.Require().NoError(err)
	s.False(ok)

	bin, err := s.store.Directory.ResolveBin(s.ctx, "WH-1", "SKU-1", "RED")
	s.Require().NoError(err)
	s.Require().NotNil(bin)
	s.Equal("A1-B1", bin.Code)

	none, err := s.store.Directory.ResolveBin(s.ctx, "WH-1", "SKU-2", "")
	s.Require().NoError(err)
	s.Nil(none)

	first, err := s.store.Sequences.Next(s.ctx, "wave:20261017")
	s.Require().NoError(err)
	second, err := s.store.Sequences.Next(s.ctx, "wave:20261017")
	s.Require().NoError(err)
	s.Equal(int64(1), first)
	s.Equal(int64(2), second)
}

func (s *RepositoryIntegrationTestSuite) TestSlotScoresUpsert() {
	score := &domain.SlotScore{WarehouseID: "WH-1", ProductID: "SKU-1", Class: domain.VelocityClassB, VelocityScore: 0.2}
	s.Require().NoError(s.store.SlotScores.Upsert(s.ctx, []*domain.SlotScore{score}))

	score.Class = domain.VelocityClassA
	score.VelocityScore = 0.9
	other := &domain.SlotScore{WarehouseID: "WH-1", ProductID: "SKU-2", Class: domain.VelocityClassD, VelocityScore: 0.01}
	s.Require().NoError(s.store.SlotScores.Upsert(s.ctx, []*domain.SlotScore{score, other}))

	all, err := s.store.SlotScores.Find(s.ctx, "WH-1", "")
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("SKU-1", all[0].ProductID)

	classA, err := s.store.SlotScores.Find(s.ctx, "WH-1", domain.VelocityClassA)
	s.Require().NoError(err)
	s.Len(classA, 1)
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/serial-looptest/internal/models"
	"gorm.io/gorm"
)

// MeasurementRepositoryTestSuite 测量记录仓库测试套件
type MeasurementRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo *MeasurementRepository
	ctx  context.Context
	base time.Time
}

func (suite *MeasurementRepositoryTestSuite) SetupSuite() {
	suite.db = SetupTestDB()
	suite.repo = NewMeasurementRepository(suite.db)
	suite.ctx = context.Background()
	suite.base = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
}

func (suite *MeasurementRepositoryTestSuite) TearDownSuite() {
	CleanupTestDB(suite.db)
}

func (suite *MeasurementRepositoryTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM measurements")
}

func (suite *MeasurementRepositoryTestSuite) seed(session string, n int, rate float64) {
	for i := 0; i < n; i++ {
		m := &models.Measurement{
			SessionID: session,
			Port:      "COM10",
			BaudRate:  2400,
			StartedAt: suite.base.Add(time.Duration(i) * time.Minute),
			ElapsedNs: int64(3 * time.Second),
			BytesSent: 2,
			Rate:      rate + float64(i),
		}
		suite.Require().NoError(suite.repo.Create(suite.ctx, m))
	}
}

func (suite *MeasurementRepositoryTestSuite) TestCreateAndGet() {
	m := &models.Measurement{SessionID: "s1", BytesSent: 2, Rate: 5.3, Response: "AB"}
	suite.Require().NoError(suite.repo.Create(suite.ctx, m))
	assert.NotZero(suite.T(), m.ID)
	assert.Equal(suite.T(), 16, m.BitsSent)

	got, err := suite.repo.GetByID(suite.ctx, m.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "AB", got.Response)

	_, err = suite.repo.GetByID(suite.ctx, 9999)
	assert.ErrorIs(suite.T(), err, gorm.ErrRecordNotFound)
}

func (suite *MeasurementRepositoryTestSuite) TestQuery() {
	suite.seed("s1", 3, 5)
	suite.seed("s2", 2, 100)

	list, total, err := suite.repo.Query(suite.ctx, &models.MeasurementQuery{SessionID: "s1"})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(3), total)
	suite.Require().Len(list, 3)
	// 按开始时间倒序
	assert.True(suite.T(), list[0].StartedAt.After(list[2].StartedAt))

	list, total, err = suite.repo.Query(suite.ctx, &models.MeasurementQuery{Limit: 2, Offset: 1})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(5), total)
	assert.Len(suite.T(), list, 2)

	start := suite.base.Add(90 * time.Second)
	list, _, err = suite.repo.Query(suite.ctx, &models.MeasurementQuery{StartTime: &start})
	suite.Require().NoError(err)
	assert.Len(suite.T(), list, 1)
}

func (suite *MeasurementRepositoryTestSuite) TestGetLatest() {
	suite.seed("s1", 4, 5)

	list, err := suite.repo.GetLatest(suite.ctx, 2)
	suite.Require().NoError(err)
	suite.Require().Len(list, 2)
	assert.InDelta(suite.T(), 8.0, list[0].Rate, 1e-9)
}

func (suite *MeasurementRepositoryTestSuite) TestGetStats() {
	stats, err := suite.repo.GetStats(suite.ctx, nil)
	suite.Require().NoError(err)
	assert.Zero(suite.T(), stats.TotalCount)

	suite.seed("s1", 3, 10) // 10, 11, 12

	stats, err = suite.repo.GetStats(suite.ctx, &models.MeasurementQuery{SessionID: "s1"})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(3), stats.TotalCount)
	assert.Equal(suite.T(), int64(48), stats.TotalBits)
	assert.InDelta(suite.T(), 11.0, stats.AvgRate, 1e-9)
	assert.InDelta(suite.T(), 12.0, stats.MaxRate, 1e-9)
	assert.InDelta(suite.T(), 10.0, stats.MinRate, 1e-9)
}

func (suite *MeasurementRepositoryTestSuite) TestCleanup() {
	old := &models.Measurement{SessionID: "old", CreatedAt: time.Now().AddDate(0, 0, -40)}
	suite.Require().NoError(suite.repo.Create(suite.ctx, old))
	suite.seed("new", 1, 1)

	n, err := suite.repo.Cleanup(suite.ctx, 30)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(1), n)

	// 过期记录被物理删除，不留软删除行
	var remaining int64
	suite.Require().NoError(suite.db.Unscoped().Model(&models.Measurement{}).Count(&remaining).Error)
	assert.Equal(suite.T(), int64(1), remaining)

	_, err = suite.repo.Cleanup(suite.ctx, 0)
	assert.Error(suite.T(), err)
}

func TestMeasurementRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(MeasurementRepositoryTestSuite))
}

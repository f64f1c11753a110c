package services

import (
	"context"
	"testing"

	"github.com/leaguecraft/tournament-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCompletedTournament plays a four-participant single elimination to the
// end. Final ranks: 1 wins, 3 is runner-up, 2 and 4 share third.
func runCompletedTournament(t *testing.T, env *testEnv, prizePool models.PrizePool) *models.Tournament {
	t.Helper()
	ctx := context.Background()

	input := openTournamentInput("Prize Cup", models.FormatSingleElimination)
	input.PrizePool = prizePool
	tournament, err := env.registry.CreateTournament(ctx, input)
	require.NoError(t, err)

	for id := 1; id <= 4; id++ {
		env.addFundedParticipant(id, 0, 0)
		_, err := env.registry.RegisterEntry(ctx, tournament.ID, id, nil)
		require.NoError(t, err)
	}
	_, err = env.registry.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)

	resolveSlot(t, env, tournament.ID, 1, 0, 1)
	resolveSlot(t, env, tournament.ID, 1, 1, 3)
	resolveSlot(t, env, tournament.ID, 2, 0, 1)
	return tournament
}

func TestDistributeRewards(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := runCompletedTournament(t, env, models.PrizePool{
		1: {Credits: 1000, Premium: 10, Items: []models.ItemGrant{{ItemID: "gold_trophy", Quantity: 1}}},
		2: {Credits: 400},
		3: {Credits: 100},
	})

	require.NoError(t, env.rewards.DistributeRewards(ctx, tournament.ID))

	credits, premium, err := env.wallets.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), credits)
	assert.Equal(t, int64(10), premium)
	assert.Equal(t, 1, env.inventory.quantity(1, "gold_trophy"))

	credits, _, err = env.wallets.Balance(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(400), credits)

	// Both semifinal losers hold rank 3 and both collect its prize.
	for _, pid := range []int{2, 4} {
		credits, _, err = env.wallets.Balance(ctx, pid)
		require.NoError(t, err)
		assert.Equal(t, int64(100), credits, "participant %d", pid)
	}

	entries, err := env.entries.ListByTournament(ctx, nil, tournament.ID)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.RewardsClaimed, "participant %d", e.ParticipantID)
	}
}

func TestDistributeRewardsNotCompleted(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := startTournament(t, env, models.FormatSingleElimination, 4)

	err := env.rewards.DistributeRewards(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func TestDistributeRewardsUnknownTournament(t *testing.T) {
	env := newTestEnv()

	err := env.rewards.DistributeRewards(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestDistributeRewardsIsNotRepeatable(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := runCompletedTournament(t, env, models.PrizePool{1: {Credits: 1000}})

	require.NoError(t, env.rewards.DistributeRewards(ctx, tournament.ID))

	err := env.rewards.DistributeRewards(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrAlreadyDistributed)

	credits, _, err := env.wallets.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), credits, "the second attempt must not pay again")
}

func TestDistributeRewardsResumesFromUnclaimed(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := runCompletedTournament(t, env, models.PrizePool{
		1: {Credits: 1000},
		2: {Credits: 400},
	})

	// Simulate a prior partial run that already paid the champion.
	champion, err := env.entries.FindByTournamentAndParticipant(ctx, nil, tournament.ID, 1)
	require.NoError(t, err)
	require.NoError(t, env.entries.SetRewardsClaimed(ctx, nil, champion.ID))

	require.NoError(t, env.rewards.DistributeRewards(ctx, tournament.ID))

	credits, _, err := env.wallets.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), credits, "already-claimed entries are skipped")

	credits, _, err = env.wallets.Balance(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(400), credits, "unclaimed entries still get paid")
}

func TestDistributeRewardsRanksWithoutPrize(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := runCompletedTournament(t, env, models.PrizePool{1: {Credits: 500}})

	require.NoError(t, env.rewards.DistributeRewards(ctx, tournament.ID))

	for _, pid := range []int{2, 3, 4} {
		credits, _, err := env.wallets.Balance(ctx, pid)
		require.NoError(t, err)
		assert.Zero(t, credits, "participant %d has a rank without a prize", pid)
	}

	entries, err := env.entries.ListByTournament(ctx, nil, tournament.ID)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.RewardsClaimed, "prize-less ranks are still marked claimed so retries converge")
	}

	err = env.rewards.DistributeRewards(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrAlreadyDistributed)
}

package service

type rewardTier struct {
	MaxMinutes int
	Name       string
}

// rewardTiers is scanned in ascending order; the first tier whose threshold
// covers the minutes wins.
var rewardTiers = []rewardTier{
	{25, "Sprout"},
	{35, "Sapling"},
	{50, "Grove"},
	{65, "Blossom"},
	{90, "Ancient"},
}

// RewardTier maps a focus length to the tree planted for it. Lengths beyond
// the table get the last tier.
func RewardTier(minutes int) string {
	for _, t := range rewardTiers {
		if minutes <= t.MaxMinutes {
			return t.Name
		}
	}
	return rewardTiers[len(rewardTiers)-1].Name
}

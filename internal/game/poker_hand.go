package game

import (
	"sort"
)

// HandRank - комбинация покера на костях, больше - сильнее
type HandRank int

const (
	HandNothing HandRank = iota
	HandPair
	HandTwoPair
	HandThreeOfAKind
	HandStraight
	HandFullHouse
	HandFourOfAKind
	HandFiveOfAKind
)

var handNames = map[HandRank]string{
	HandNothing:      "nothing",
	HandPair:         "pair",
	HandTwoPair:      "two_pair",
	HandThreeOfAKind: "three_of_a_kind",
	HandStraight:     "straight",
	HandFullHouse:    "full_house",
	HandFourOfAKind:  "four_of_a_kind",
	HandFiveOfAKind:  "five_of_a_kind",
}

func (r HandRank) String() string { return handNames[r] }

type Hand struct {
	Rank HandRank
	// грани для разрешения равенства: сначала по размеру группы, потом по старшинству
	Kickers []int
}

// EvaluateHand ранжирует пять кубиков
func EvaluateHand(dice []int) Hand {
	counts := map[int]int{}
	for _, d := range dice {
		counts[d]++
	}

	faces := make([]int, 0, len(counts))
	for f := range counts {
		faces = append(faces, f)
	}
	sort.Slice(faces, func(i, j int) bool {
		if counts[faces[i]] != counts[faces[j]] {
			return counts[faces[i]] > counts[faces[j]]
		}
		return faces[i] > faces[j]
	})

	groups := make([]int, len(faces))
	for i, f := range faces {
		groups[i] = counts[f]
	}

	h := Hand{Kickers: faces}
	switch {
	case groups[0] == 5:
		h.Rank = HandFiveOfAKind
	case groups[0] == 4:
		h.Rank = HandFourOfAKind
	case groups[0] == 3 && len(groups) > 1 && groups[1] == 2:
		h.Rank = HandFullHouse
	case len(faces) == 5 && faces[0]-faces[4] == 4:
		h.Rank = HandStraight
	case groups[0] == 3:
		h.Rank = HandThreeOfAKind
	case groups[0] == 2 && len(groups) > 1 && groups[1] == 2:
		h.Rank = HandTwoPair
	case groups[0] == 2:
		h.Rank = HandPair
	default:
		h.Rank = HandNothing
	}
	return h
}

// CompareHands: >0 если a сильнее, <0 если b, 0 при полном равенстве
func CompareHands(a, b Hand) int {
	if a.Rank != b.Rank {
		return int(a.Rank) - int(b.Rank)
	}
	for i := 0; i < len(a.Kickers) && i < len(b.Kickers); i++ {
		if a.Kickers[i] != b.Kickers[i] {
			return a.Kickers[i] - b.Kickers[i]
		}
	}
	return len(a.Kickers) - len(b.Kickers)
}

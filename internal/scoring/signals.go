package scoring

// CreditSignalScorer produces the personal creditworthiness component.
// Implementations must be pure and return a value in [0,100].
type CreditSignalScorer interface {
	Score(a Applicant) float64
}

// SocialSignalScorer produces the social verification component.
type SocialSignalScorer interface {
	Score(a Applicant) float64
}

// NeutralScorer ignores the applicant and returns NeutralComponentScore.
type NeutralScorer struct{}

func (NeutralScorer) Score(Applicant) float64 { return NeutralComponentScore }

// BureauScorer scores traditional bureau signals: up to 50 points for the
// normalized credit score, 30 for utilization and 20 for recent inquiries.
// Without any bureau data it returns NeutralComponentScore. A sub-signal that is
// absent contributes half its points.
type BureauScorer struct{}

func (BureauScorer) Score(a Applicant) float64 {
	b := a.Bureau
	if b.empty() {
		return NeutralComponentScore
	}

	score := 25.0
	if s := b.TraditionalCreditScore; s != nil {
		score = 50 * float64(*s-MinScore) / float64(MaxScore-MinScore)
	}

	if u := b.CreditUtilization; u != nil {
		switch {
		case *u <= 0.1:
			score += 30
		case *u <= 0.3:
			score += 20
		case *u <= 0.5:
			score += 10
		}
	} else {
		score += 15
	}

	if n := b.RecentInquiries; n != nil {
		switch {
		case *n == 0:
			score += 20
		case *n <= 2:
			score += 15
		case *n <= 4:
			score += 10
		}
	} else {
		score += 10
	}

	return clamp100(score)
}

var presenceWeights = [4]float64{30, 25, 25, 20}

// PresenceScorer weights identity verification, professional network, online
// presence and community involvement 30/25/25/20, renormalized over the signals
// actually supplied. With no signals it returns NeutralComponentScore.
type PresenceScorer struct{}

func (PresenceScorer) Score(a Applicant) float64 {
	s := a.Social
	signals := [4]*float64{s.IdentityVerification, s.ProfessionalNetwork, s.OnlinePresence, s.CommunityInvolvement}

	var total, weight float64
	for i, v := range signals {
		if v == nil {
			continue
		}
		total += presenceWeights[i] * *v
		weight += presenceWeights[i]
	}
	if weight == 0 {
		return NeutralComponentScore
	}
	return clamp100(100 * total / weight)
}

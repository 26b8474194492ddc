package store

import (
	"context"
	"time"

	"github.com/healthsync/healthsync/internal/domain"
)

// Seed populates empty collections with the sample data set: a handful of
// posts, the Global and Local/India communities, the regional doctor
// registry, and three simulated patients. It is idempotent: collections
// that already hold documents are left untouched.
func Seed(ctx context.Context, s domain.Store, now time.Time) error {
	ts := now.Format(time.RFC3339)

	posts, err := s.Posts().List(ctx)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		posts = seedPosts(ts)
		for _, p := range posts {
			if err := s.Posts().Insert(ctx, p); err != nil {
				return err
			}
		}
	}

	communities, err := s.Communities().List(ctx)
	if err != nil {
		return err
	}
	if len(communities) == 0 {
		for _, c := range seedCommunities() {
			if err := s.Communities().Insert(ctx, c); err != nil {
				return err
			}
		}
		// Project freshly seeded posts into their shared communities.
		for _, p := range posts {
			for _, communityID := range p.SharedTo {
				key := domain.ParseCommunityID(communityID)
				if err := s.Communities().AppendPost(ctx, key, p); err != nil && !domain.IsNotFound(err) {
					return err
				}
			}
		}
	}

	groups, err := s.Doctors().Groups(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		for _, g := range seedDoctors() {
			if err := s.Doctors().InsertGroup(ctx, g); err != nil {
				return err
			}
		}
	}

	patients, err := s.Patients().List(ctx)
	if err != nil {
		return err
	}
	if len(patients) == 0 {
		for _, id := range []string{"patient1", "patient2", "patient3"} {
			if err := s.Patients().Replace(ctx, id, []domain.VitalsSample{}); err != nil {
				return err
			}
		}
	}

	return nil
}

func seedPosts(ts string) []domain.Post {
	return []domain.Post{
		{
			ID: "post1", Author: "Dr. Rajesh Kumar",
			Content:  "New insights on heart health management",
			ImageURL: "http://localhost:3000/images/1-heart-health.jpg",
			Likes:    map[string]bool{}, Comments: []string{"Great post!", "Very informative"},
			Timestamp: ts, SharedTo: []string{"Global"},
		},
		{
			ID: "post2", Author: "Dr. Emily Davis",
			Content:  "Pediatric care tips for flu season",
			ImageURL: "http://localhost:3000/images/4-pediatric-care.jpg",
			Likes:    map[string]bool{}, Comments: []string{"Helpful!", "Thanks for sharing"},
			Timestamp: ts, SharedTo: []string{"Global"},
		},
		{
			ID: "post3", Author: "Dr. Kumar",
			Content:  "Neurology updates for stroke prevention",
			ImageURL: "http://localhost:3000/images/2-neurology.jpg",
			Likes:    map[string]bool{}, Comments: []string{"Useful info!", "Great work"},
			Timestamp: ts, SharedTo: []string{"Local_India"},
		},
		{
			ID: "post4", Author: "Dr. Patel",
			Content:  "Nutrition tips for better health",
			ImageURL: "http://localhost:3000/images/3-nutrition-tips.jpg",
			Likes:    map[string]bool{}, Comments: []string{"Very helpful!", "Thanks"},
			Timestamp: ts, SharedTo: []string{"Local_India"},
		},
	}
}

func seedCommunities() []domain.Community {
	india := "India"
	emptyChannels := func() map[string][]string {
		return map[string][]string{
			domain.ChannelGeneral:     {},
			domain.ChannelEmergencies: {},
		}
	}
	return []domain.Community{
		{
			Type: domain.CommunityTypeGlobal, Location: nil, Name: "Global Community",
			Members:  []string{"Dr. Rajesh", "Dr. Emily", "Dr. Alice", "doc1"},
			Posts:    []domain.Post{},
			Messages: emptyChannels(),
		},
		{
			Type: domain.CommunityTypeLocal, Location: &india, Name: "India Community",
			Members:  []string{"Dr. Kumar", "Dr. Patel", "Dr. Sharma", "doc1"},
			Posts:    []domain.Post{},
			Messages: emptyChannels(),
		},
	}
}

func seedDoctors() []domain.DoctorGroup {
	return []domain.DoctorGroup{
		{
			Region: "India",
			Doctors: []domain.Doctor{
				{Username: "Dr. Kumar", ExperienceYears: 15, Specialties: []string{"Cardiology"}, Rating: 4.8, Image: "http://localhost:3000/images/1-heart-health.jpg", Status: domain.DoctorDisconnected},
				{Username: "Dr. Patel", ExperienceYears: 12, Specialties: []string{"Neurology"}, Rating: 4.6, Image: "http://localhost:3000/images/2-neurology.jpg", Status: domain.DoctorDisconnected},
			},
		},
		{
			Region: "USA",
			Doctors: []domain.Doctor{
				{Username: "Dr. Smith", ExperienceYears: 18, Specialties: []string{"Oncology"}, Rating: 4.9, Image: "https://via.placeholder.com/100.png?text=Dr.+Smith", Status: domain.DoctorDisconnected},
			},
		},
		{
			Region: "UK",
			Doctors: []domain.Doctor{
				{Username: "Dr. Brown", ExperienceYears: 14, Specialties: []string{"Pediatrics"}, Rating: 4.7, Image: "https://via.placeholder.com/100.png?text=Dr.+Brown", Status: domain.DoctorDisconnected},
			},
		},
	}
}

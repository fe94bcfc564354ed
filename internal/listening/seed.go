package listening

import "context"

// SeedSampleTests loads the built-in TOEFL-style sample catalog unless
// tests already exist. Returns the number of tests created.
func SeedSampleTests(ctx context.Context, store Store) (int, error) {
	existing, err := store.ListTests(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	n := 0
	for _, t := range SampleTests() {
		if _, err := store.PutTest(ctx, t); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func mcq(correct string, texts ...string) []ChoiceOption {
	labels := []string{"A", "B", "C", "D"}
	out := make([]ChoiceOption, 0, len(texts))
	for i, text := range texts {
		out = append(out, ChoiceOption{
			Label:     labels[i],
			Text:      text,
			IsCorrect: labels[i] == correct,
			Order:     i + 1,
		})
	}
	return out
}

// SampleTests returns five small listening tests with transcripts,
// questions and answer keys.
func SampleTests() []Test {
	return []Test{
		{
			Title:     "REAL 1",
			VersionID: "v1",
			IsActive:  true,
			Items: []Item{
				{
					ItemType:   ItemConversation,
					Difficulty: "medium",
					TopicTag:   "Campus",
					Order:      1,
					Transcript: `Narrator: Listen to a conversation between a student and a facilities manager.

Student: Hi, I'm here about the desk in the library study room. The one near the window is broken—the drawer won't close.

Employee: Oh, we've had a few reports about that. Let me take your name and the exact location. Which study room number?

Student: It's room 3, on the second floor. The desk right by the window.

Employee: Got it. I'll put in a work order. It should be fixed by the end of the week. Is there anything else?

Student: No, that's all. Thanks.`,
					Questions: []Question{
						{
							Text:         "Why does the student go to the facilities management office?",
							QuestionType: "main_idea",
							Order:        1,
							Explanation:  "The student explicitly states she is there about a broken desk in the library and describes the problem.",
							Options: mcq("A",
								"To report a broken desk in the library.",
								"To inquire about the availability of study rooms.",
								"To request a repair for a faulty air conditioner in the dorm.",
								"To complain about the noise level in the common area."),
						},
						{
							Text:         "Which study room is the student referring to?",
							QuestionType: "detail",
							Order:        2,
							Explanation:  `The student says "It's room 3, on the second floor."`,
							Options: mcq("B",
								"Room 1 on the first floor.",
								"Room 3 on the second floor.",
								"Room 5 on the third floor.",
								"The room near the main entrance."),
						},
					},
				},
				{
					ItemType:   ItemLecture,
					Difficulty: "medium",
					TopicTag:   "Biology",
					Order:      2,
					Transcript: `Narrator: Listen to part of a lecture in a biology class.

Professor: Today we'll look at how certain plants adapt to dry environments. One key mechanism is crassulacean acid metabolism, or CAM. In CAM plants, the stomata open at night to take in carbon dioxide and close during the day to reduce water loss. This is the opposite of what most plants do. The cactus is a classic example. By storing CO2 at night and using it for photosynthesis during the day, the cactus can survive with very little water. Other CAM plants include pineapple and agave.`,
					Questions: []Question{
						{
							Text:         "What is the main idea of the lecture?",
							QuestionType: "main_idea",
							Order:        1,
							Explanation:  "The professor introduces CAM as a key mechanism for plants in dry environments and explains how it works.",
							Options: mcq("C",
								"Cacti are the only plants that survive in deserts.",
								"Stomata always open during the day.",
								"CAM allows plants to conserve water in dry environments.",
								"Pineapple and agave are not related to cacti."),
						},
					},
				},
			},
		},
		{
			Title:     "REAL 2",
			VersionID: "v1",
			IsActive:  true,
			Items: []Item{
				{
					ItemType:   ItemConversation,
					Difficulty: "easy",
					TopicTag:   "Registration",
					Order:      1,
					Transcript: `Narrator: Listen to a conversation between a student and an advisor.

Student: I need to add a course but the deadline passed. Is there any way to still register?

Advisor: It depends. What course is it?

Student: Introduction to Psychology. It's full but I really need it this semester.

Advisor: You can submit a late add form with your professor's signature. If they approve and there's space, we can add you. Have you spoken to the professor?

Student: Not yet. I'll go to their office hours tomorrow.

Advisor: Good. Bring the form and your student ID when you come back.`,
					Questions: []Question{
						{
							Text:         "What does the student want to do?",
							QuestionType: "main_idea",
							Order:        1,
							Explanation:  "The student says they need to add a course and asks if they can still register after the deadline.",
							Options: mcq("A",
								"Register for a course after the deadline.",
								"Drop a course.",
								"Change his major.",
								"Get a signature for a scholarship."),
						},
						{
							Text:         "What must the student do next?",
							QuestionType: "detail",
							Order:        2,
							Explanation:  "The advisor says the student should get the professor's signature and can go to office hours. The student says they will go tomorrow.",
							Options: mcq("B",
								"Pay a late fee at the bursar.",
								"Get the professor's approval and bring the form back.",
								"Wait until next semester.",
								"Choose a different course."),
						},
					},
				},
			},
		},
		{
			Title:     "REAL 3",
			VersionID: "v1",
			IsActive:  true,
			Items: []Item{
				{
					ItemType:   ItemLecture,
					Difficulty: "hard",
					TopicTag:   "History",
					Order:      1,
					Transcript: `Narrator: Listen to part of a lecture in a history class.

Professor: The Silk Road was not a single road but a network of trade routes connecting East and West. Silk was one of the main commodities, but spices, glass, and ideas also traveled along these routes. Buddhism spread from India to China largely through Silk Road contact. The routes declined when sea trade became safer and faster, but their impact on culture and technology was lasting. Marco Polo's travels in the 13th century were along these same networks.`,
					Questions: []Question{
						{
							Text:         "According to the professor, what is true about the Silk Road?",
							QuestionType: "detail",
							Order:        1,
							Explanation:  "The professor states that the Silk Road was a network of routes, not a single road, and that silk, spices, glass, and ideas were traded.",
							Options: mcq("B",
								"It was a single road from China to Rome.",
								"It was a network of routes trading goods and ideas.",
								"It was used only for silk.",
								"It was replaced by land routes."),
						},
						{
							Text:         "Why did the Silk Road decline?",
							QuestionType: "inference",
							Order:        2,
							Explanation:  "The professor says the routes declined when sea trade became safer and faster.",
							Options: mcq("C",
								"Because of wars in Central Asia.",
								"Because silk became less valuable.",
								"Because sea trade became safer and faster.",
								"Because Marco Polo stopped traveling."),
						},
					},
				},
			},
		},
		{
			Title:     "TOEFL Practice 1",
			VersionID: "v1",
			IsActive:  true,
			Items: []Item{
				{
					ItemType:   ItemConversation,
					Difficulty: "medium",
					TopicTag:   "Library",
					Order:      1,
					Transcript: `Narrator: Listen to a conversation between a student and a librarian.

Student: I'm looking for articles on climate change and agriculture. Do you have anything from the last two years?

Librarian: Yes. You can use our database—just go to the library website and click "Databases." Search for "Environmental Science." You'll find several journals there. You can filter by date.

Student: Can I access it from off campus?

Librarian: Yes, but you need to log in with your university ID. Otherwise you won't get full access.

Student: Great, thanks.`,
					Questions: []Question{
						{
							Text:         "What does the student need to do to access the database from off campus?",
							QuestionType: "detail",
							Order:        1,
							Explanation:  "The librarian says the student needs to log in with their university ID for off-campus access.",
							Options: mcq("B",
								"Come to the library in person.",
								"Log in with their university ID.",
								"Pay a subscription fee.",
								"Use a specific browser."),
						},
					},
				},
			},
		},
		{
			Title:     "TOEFL Practice 2",
			VersionID: "v1",
			IsActive:  true,
			Items: []Item{
				{
					ItemType:   ItemLecture,
					Difficulty: "medium",
					TopicTag:   "Psychology",
					Order:      1,
					Transcript: `Narrator: Listen to part of a lecture in a psychology class.

Professor: Classical conditioning was first demonstrated by Ivan Pavlov. He noticed that dogs salivated not only when they saw food but also when they heard the footsteps of the person who fed them. He then paired a neutral stimulus—a bell—with the presentation of food. After repeated pairings, the dogs salivated at the sound of the bell alone. The bell had become a conditioned stimulus. This principle has been used in advertising, education, and therapy.`,
					Questions: []Question{
						{
							Text:         "What did Pavlov discover in his experiment?",
							QuestionType: "detail",
							Order:        1,
							Explanation:  "Pavlov found that after pairing a bell with food, the dogs salivated at the sound of the bell alone.",
							Options: mcq("A",
								"Dogs could learn to associate a neutral stimulus with a response.",
								"Dogs only salivate when they see food.",
								"Bells are harmful to dogs.",
								"Food is the only effective reward."),
						},
						{
							Text:         "According to the professor, where has classical conditioning been applied?",
							QuestionType: "detail",
							Order:        2,
							Explanation:  "The professor says the principle has been used in advertising, education, and therapy.",
							Options: mcq("D",
								"Only in laboratory settings.",
								"Only with animals.",
								"Only in Russia.",
								"In advertising, education, and therapy."),
						},
					},
				},
			},
		},
	}
}

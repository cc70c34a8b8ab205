package catalog

// Default returns the built-in interview definition for the founding-grant
// business plan. Sections and gates mirror the fixed compliance scheme of the
// funding program; the set of gates is fixed, user data never adds or
// removes one.
func Default() (*Catalog, error) {
	sections := []SectionSpec{
		{ID: "founder", Ordinal: 1, Title: "Founder Profile", MinPercent: 75, OptimalPercent: 100, Weight: 10},
		{ID: "idea", Ordinal: 2, Title: "Business Idea", MinPercent: 75, OptimalPercent: 90, Weight: 20},
		{ID: "market", Ordinal: 3, Title: "Market & Competition", MinPercent: 75, OptimalPercent: 90, Weight: 15},
		{ID: "marketing", Ordinal: 4, Title: "Marketing & Sales", MinPercent: 70, OptimalPercent: 90, Weight: 10},
		{ID: "operations", Ordinal: 5, Title: "Organisation & Legal Form", MinPercent: 70, OptimalPercent: 90, Weight: 10},
		{ID: "finance", Ordinal: 6, Title: "Financial Plan", MinPercent: 80, OptimalPercent: 100, Weight: 25},
		{ID: "milestones", Ordinal: 7, Title: "SWOT & Milestones", MinPercent: 60, OptimalPercent: 85, Weight: 10},
	}

	gates := []GateSpec{
		{ID: "eligibility", SectionID: "founder", Title: "Program eligibility", Weight: 10},
		{ID: "qualification", SectionID: "founder", Title: "Professional qualification evidence", Weight: 8},
		{ID: "full_time", SectionID: "operations", Title: "Full-time commitment", Weight: 8},
		{ID: "market_viability", SectionID: "market", Title: "Market viability", Weight: 9},
		{ID: "capital_requirement", SectionID: "finance", Title: "Capital requirement plan", Weight: 9},
		{ID: "revenue_forecast", SectionID: "finance", Title: "Three-year revenue forecast", Weight: 9},
		{ID: "subsistence", SectionID: "finance", Title: "Personal subsistence coverage", Weight: 7},
	}

	questions := []Question{
		// Founder Profile
		{ID: "founder_background", SectionID: "founder", Prompt: "Describe your professional background and how it led to this venture.", Kind: KindText, Required: true, MinLength: 120, MaxLength: 4000, MaxIterations: 3, SpecificityChecks: []string{"years_of_experience", "relevant_roles"}},
		{ID: "founder_eligibility_status", SectionID: "founder", Prompt: "What is your current employment status with the program agency?", Kind: KindChoice, Required: true, Choices: []string{"Registered unemployed", "Under notice of termination", "Employed", "Student"}, GateID: "eligibility"},
		{ID: "founder_qualification", SectionID: "founder", Prompt: "Which qualifications, certificates or work experience prove you can run this business?", Kind: KindText, Required: true, MinLength: 100, MaxLength: 3000, GateID: "qualification", MaxIterations: 3, SpecificityChecks: []string{"named_certificates", "verifiable_experience"}},
		{ID: "founder_count", SectionID: "founder", Prompt: "How many founders start the business together?", Kind: KindNumber, Required: true},
		{ID: "founder_team", SectionID: "founder", Prompt: "Describe the other founders and how responsibilities are split.", Kind: KindText, Required: false, MinLength: 80, MaxLength: 3000, MaxIterations: 2, VisibleIf: []Condition{{QuestionID: "founder_count", Op: OpAtLeast, Value: "2"}}},

		// Business Idea
		{ID: "idea_summary", SectionID: "idea", Prompt: "Summarise your business idea in a few sentences.", Kind: KindText, Required: true, MinLength: 100, MaxLength: 2000, MaxIterations: 3, SpecificityChecks: []string{"offer", "customer", "benefit"}},
		{ID: "idea_offer", SectionID: "idea", Prompt: "What product or service will you sell, exactly?", Kind: KindText, Required: true, MinLength: 120, MaxLength: 4000, MaxIterations: 3},
		{ID: "idea_usp", SectionID: "idea", Prompt: "What makes your offer different from what exists today?", Kind: KindText, Required: true, MinLength: 100, MaxLength: 3000, MaxIterations: 3, SpecificityChecks: []string{"comparable_offers", "differentiator"}},
		{ID: "idea_stage", SectionID: "idea", Prompt: "How far developed is the offer?", Kind: KindChoice, Required: true, Choices: []string{"Concept only", "Prototype", "First paying customers", "Established revenue"}},
		{ID: "idea_protection", SectionID: "idea", Prompt: "How do you protect the idea (patents, contracts, lead)?", Kind: KindText, Required: false, MinLength: 60, MaxLength: 2000, MaxIterations: 2},

		// Market & Competition
		{ID: "market_customers", SectionID: "market", Prompt: "Who are your customers? Describe the target group as concretely as possible.", Kind: KindText, Required: true, MinLength: 120, MaxLength: 4000, MaxIterations: 3, SpecificityChecks: []string{"segment_size", "willingness_to_pay"}},
		{ID: "market_size", SectionID: "market", Prompt: "Estimate the reachable market volume per year in euros.", Kind: KindNumber, Required: true},
		{ID: "market_competitors", SectionID: "market", Prompt: "Name your three most important competitors and their weaknesses.", Kind: KindText, Required: true, MinLength: 120, MaxLength: 4000, GateID: "market_viability", MaxIterations: 3, SpecificityChecks: []string{"named_competitors", "price_comparison"}},
		{ID: "market_entry_barriers", SectionID: "market", Prompt: "Which barriers make it hard for others to copy you?", Kind: KindText, Required: false, MinLength: 60, MaxLength: 2000, MaxIterations: 2},

		// Marketing & Sales
		{ID: "marketing_channels", SectionID: "marketing", Prompt: "Through which channels will customers find and buy from you?", Kind: KindText, Required: true, MinLength: 100, MaxLength: 3000, MaxIterations: 3},
		{ID: "marketing_pricing", SectionID: "marketing", Prompt: "How are your prices set, and how do they compare to competitors?", Kind: KindText, Required: true, MinLength: 80, MaxLength: 3000, MaxIterations: 2},
		{ID: "marketing_launch", SectionID: "marketing", Prompt: "What are the first three marketing actions after launch?", Kind: KindText, Required: false, MinLength: 60, MaxLength: 2000, MaxIterations: 2},

		// Organisation & Legal Form
		{ID: "ops_legal_form", SectionID: "operations", Prompt: "Which legal form will the business have?", Kind: KindChoice, Required: true, Choices: []string{"Sole proprietorship", "GbR", "UG", "GmbH", "Freelance"}},
		{ID: "ops_commitment", SectionID: "operations", Prompt: "Describe your weekly working time for the business and any side employment.", Kind: KindText, Required: true, MinLength: 80, MaxLength: 2000, GateID: "full_time", MaxIterations: 3, SpecificityChecks: []string{"hours_per_week", "side_income"}},
		{ID: "ops_location", SectionID: "operations", Prompt: "Where will you operate from, and why there?", Kind: KindText, Required: false, MinLength: 60, MaxLength: 2000, MaxIterations: 2},
		{ID: "ops_partners", SectionID: "operations", Prompt: "Which partners, suppliers or tools are critical for delivery?", Kind: KindText, Required: false, MinLength: 60, MaxLength: 2000, MaxIterations: 2},

		// Financial Plan
		{ID: "fin_capital_needed", SectionID: "finance", Prompt: "How much starting capital do you need in euros?", Kind: KindNumber, Required: true},
		{ID: "fin_capital_plan", SectionID: "finance", Prompt: "Break down the capital requirement and how each part is financed.", Kind: KindText, Required: true, MinLength: 120, MaxLength: 4000, GateID: "capital_requirement", MaxIterations: 3, SpecificityChecks: []string{"itemised_costs", "funding_sources"}},
		{ID: "fin_funding_sources", SectionID: "finance", Prompt: "Which outside funding (loans, grants, investors) will you use?", Kind: KindText, Required: false, MinLength: 60, MaxLength: 3000, MaxIterations: 2, VisibleIf: []Condition{{QuestionID: "fin_capital_needed", Op: OpAtLeast, Value: "10000"}}},
		{ID: "fin_revenue_forecast", SectionID: "finance", Prompt: "Forecast revenue and costs for the first three years.", Kind: KindText, Required: true, MinLength: 150, MaxLength: 5000, GateID: "revenue_forecast", MaxIterations: 3, SpecificityChecks: []string{"yearly_figures", "assumptions_stated"}},
		{ID: "fin_subsistence", SectionID: "finance", Prompt: "Show that the business covers your personal living costs from year two.", Kind: KindText, Required: true, MinLength: 100, MaxLength: 3000, GateID: "subsistence", MaxIterations: 3, SpecificityChecks: []string{"monthly_costs", "draw_schedule"}},

		// SWOT & Milestones
		{ID: "swot_strengths", SectionID: "milestones", Prompt: "List the strengths and weaknesses of your founding situation.", Kind: KindText, Required: true, MinLength: 80, MaxLength: 3000, MaxIterations: 2},
		{ID: "swot_risks", SectionID: "milestones", Prompt: "Which risks could break the plan, and how will you counter them?", Kind: KindText, Required: true, MinLength: 80, MaxLength: 3000, MaxIterations: 2},
		{ID: "milestones_year_one", SectionID: "milestones", Prompt: "Name the milestones for the first twelve months.", Kind: KindText, Required: false, MinLength: 60, MaxLength: 2000, MaxIterations: 2},
	}

	concepts := []Concept{
		{
			ID: "target_group", Title: "Target group sharpness", IntroducedIn: "idea",
			Schedule: []Resurfacing{
				{SectionID: "market", Stage: StageReinforce},
				{SectionID: "marketing", Stage: StageApply},
				{SectionID: "finance", Stage: StageValidate},
			},
		},
		{
			ID: "unit_economics", Title: "Unit economics", IntroducedIn: "market",
			Schedule: []Resurfacing{
				{SectionID: "marketing", Stage: StageReinforce},
				{SectionID: "finance", Stage: StageApply},
			},
		},
		{
			ID: "founder_fit", Title: "Founder-market fit", IntroducedIn: "founder",
			Schedule: []Resurfacing{
				{SectionID: "idea", Stage: StageReinforce},
				{SectionID: "milestones", Stage: StageValidate},
			},
		},
	}

	return Load(sections, questions, gates, concepts)
}

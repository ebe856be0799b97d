package database

import "metareview/internal/domain/catalog"

type fieldSeed struct {
	code        string
	name        string
	category    catalog.Category
	dataType    catalog.DataType
	description string
	options     []string
}

var biasLevels = []string{"Low", "Moderate", "High", "Unclear"}

var predefined = []fieldSeed{
	// identification
	{"first_author", "First author(s)", catalog.CategoryIdentification, catalog.TypeText, "Surname and given name of the study's main author or authors", nil},
	{"publication_year", "Publication year", catalog.CategoryIdentification, catalog.TypeNumber, "Year the study was published", nil},
	{"study_country", "Study country", catalog.CategoryIdentification, catalog.TypeText, "Country or countries where the study was carried out", nil},
	{"journal", "Journal", catalog.CategoryIdentification, catalog.TypeText, "Journal or venue of publication", nil},
	{"impact_factor", "Impact factor", catalog.CategoryIdentification, catalog.TypeNumber, "Journal impact factor in the publication year", nil},
	// methodology
	{"study_design", "Study design", catalog.CategoryMethodology, catalog.TypeOptions, "Overall design of the study", []string{"Experimental", "Quasi-experimental", "Observational", "Longitudinal", "Cross-sectional", "Case-control", "Cohort", "Randomized controlled trial (RCT)", "Systematic review", "Other"}},
	{"intervention_type", "Intervention type", catalog.CategoryMethodology, catalog.TypeText, "Intervention or treatment applied", nil},
	{"control_group", "Control group", catalog.CategoryMethodology, catalog.TypeBoolean, "Whether the study has a control group", nil},
	{"control_type", "Control type", catalog.CategoryMethodology, catalog.TypeOptions, "Kind of comparison used for the control group", []string{"Placebo", "No treatment", "Waiting list", "Standard treatment", "Usual care", "Other", "N/A"}},
	{"randomization", "Randomization", catalog.CategoryMethodology, catalog.TypeBoolean, "Whether participants were randomly allocated", nil},
	{"blinding", "Blinding", catalog.CategoryMethodology, catalog.TypeOptions, "Blinding level", []string{"None", "Single blind", "Double blind", "Triple blind", "N/A"}},
	{"study_duration", "Study duration", catalog.CategoryMethodology, catalog.TypeText, "Total duration of the intervention", nil},
	{"follow_up", "Follow-up", catalog.CategoryMethodology, catalog.TypeText, "Follow-up period after the intervention", nil},
	// sample
	{"n_total", "Sample size (total n)", catalog.CategorySample, catalog.TypeNumber, "Total number of participants", nil},
	{"n_experimental", "Experimental group size (n)", catalog.CategorySample, catalog.TypeNumber, "Participants in the experimental group", nil},
	{"n_control", "Control group size (n)", catalog.CategorySample, catalog.TypeNumber, "Participants in the control group", nil},
	{"mean_age", "Mean age", catalog.CategorySample, catalog.TypeNumber, "Mean age of participants", nil},
	{"age_sd", "Age standard deviation", catalog.CategorySample, catalog.TypeNumber, "Standard deviation of participant age", nil},
	{"age_range", "Age range", catalog.CategorySample, catalog.TypeText, "Minimum and maximum age", nil},
	{"percent_female", "Percent female", catalog.CategorySample, catalog.TypeNumber, "Share of female participants", nil},
	{"population_characteristics", "Population characteristics", catalog.CategorySample, catalog.TypeText, "Relevant traits of the studied population", nil},
	{"inclusion_criteria", "Inclusion criteria", catalog.CategorySample, catalog.TypeText, "Criteria used to include participants", nil},
	{"exclusion_criteria", "Exclusion criteria", catalog.CategorySample, catalog.TypeText, "Criteria used to exclude participants", nil},
	{"dropout_rate", "Dropout rate (%)", catalog.CategorySample, catalog.TypeNumber, "Share of participants lost during the study", nil},
	// results
	{"primary_outcome", "Primary outcome", catalog.CategoryResults, catalog.TypeText, "Main outcome variable", nil},
	{"measurement_instrument", "Measurement instrument", catalog.CategoryResults, catalog.TypeText, "Scale or instrument used to measure the outcome", nil},
	{"mean_exp_pre", "Experimental mean (pre)", catalog.CategoryResults, catalog.TypeNumber, "Experimental group mean before the intervention", nil},
	{"sd_exp_pre", "Experimental SD (pre)", catalog.CategoryResults, catalog.TypeNumber, "Experimental group standard deviation before the intervention", nil},
	{"mean_exp_post", "Experimental mean (post)", catalog.CategoryResults, catalog.TypeNumber, "Experimental group mean after the intervention", nil},
	{"sd_exp_post", "Experimental SD (post)", catalog.CategoryResults, catalog.TypeNumber, "Experimental group standard deviation after the intervention", nil},
	{"mean_control_pre", "Control mean (pre)", catalog.CategoryResults, catalog.TypeNumber, "Control group mean before the intervention", nil},
	{"sd_control_pre", "Control SD (pre)", catalog.CategoryResults, catalog.TypeNumber, "Control group standard deviation before the intervention", nil},
	{"mean_control_post", "Control mean (post)", catalog.CategoryResults, catalog.TypeNumber, "Control group mean after the intervention", nil},
	{"sd_control_post", "Control SD (post)", catalog.CategoryResults, catalog.TypeNumber, "Control group standard deviation after the intervention", nil},
	{"p_value", "p-value", catalog.CategoryResults, catalog.TypeNumber, "Reported p-value", nil},
	{"alpha", "Significance level (alpha)", catalog.CategoryResults, catalog.TypeNumber, "Significance threshold used", nil},
	{"confidence_interval", "Confidence interval", catalog.CategoryResults, catalog.TypeText, "Reported confidence interval", nil},
	{"test_statistic", "Test statistic", catalog.CategoryResults, catalog.TypeText, "Statistical test used (t, F, chi-square)", nil},
	{"statistic_value", "Statistic value", catalog.CategoryResults, catalog.TypeNumber, "Value of the test statistic", nil},
	{"degrees_of_freedom", "Degrees of freedom", catalog.CategoryResults, catalog.TypeText, "Degrees of freedom of the test", nil},
	// effects
	{"cohens_d", "Cohen's d", catalog.CategoryEffects, catalog.TypeNumber, "Standardized mean difference", nil},
	{"hedges_g", "Hedges' g", catalog.CategoryEffects, catalog.TypeNumber, "Bias-corrected standardized mean difference", nil},
	{"glass_delta", "Glass's delta", catalog.CategoryEffects, catalog.TypeNumber, "Mean difference standardized by the control SD", nil},
	{"odds_ratio", "Odds ratio (OR)", catalog.CategoryEffects, catalog.TypeNumber, "Reported odds ratio", nil},
	{"risk_ratio", "Risk ratio (RR)", catalog.CategoryEffects, catalog.TypeNumber, "Reported risk ratio", nil},
	{"correlation_r", "Correlation (r)", catalog.CategoryEffects, catalog.TypeNumber, "Pearson correlation coefficient", nil},
	{"r_squared", "R squared", catalog.CategoryEffects, catalog.TypeNumber, "Coefficient of determination", nil},
	{"eta_squared", "Eta squared", catalog.CategoryEffects, catalog.TypeNumber, "Proportion of variance explained", nil},
	{"omega_squared", "Omega squared", catalog.CategoryEffects, catalog.TypeNumber, "Less biased variance explained estimate", nil},
	{"partial_eta_squared", "Partial eta squared", catalog.CategoryEffects, catalog.TypeNumber, "Variance explained controlling for other factors", nil},
	{"nnt", "Number needed to treat (NNT)", catalog.CategoryEffects, catalog.TypeNumber, "Patients to treat for one additional good outcome", nil},
	{"effect_se", "Effect standard error", catalog.CategoryEffects, catalog.TypeNumber, "Standard error of the effect size", nil},
	{"effect_variance", "Effect variance", catalog.CategoryEffects, catalog.TypeNumber, "Variance of the effect size", nil},
	// quality
	{"jadad_score", "Jadad score", catalog.CategoryQuality, catalog.TypeNumber, "Jadad scale score (0-5)", nil},
	{"pedro_score", "PEDro score", catalog.CategoryQuality, catalog.TypeNumber, "PEDro scale score (0-10)", nil},
	{"risk_of_bias", "Risk of bias (overall)", catalog.CategoryQuality, catalog.TypeOptions, "Overall risk of bias", biasLevels},
	{"selection_bias", "Selection bias", catalog.CategoryQuality, catalog.TypeOptions, "Risk of selection bias", biasLevels},
	{"performance_bias", "Performance bias", catalog.CategoryQuality, catalog.TypeOptions, "Risk of performance bias", biasLevels},
	{"detection_bias", "Detection bias", catalog.CategoryQuality, catalog.TypeOptions, "Risk of detection bias", biasLevels},
	{"attrition_bias", "Attrition bias", catalog.CategoryQuality, catalog.TypeOptions, "Risk of attrition bias", biasLevels},
	{"reporting_bias", "Reporting bias", catalog.CategoryQuality, catalog.TypeOptions, "Risk of reporting bias", biasLevels},
	{"conflicts_of_interest", "Conflicts of interest", catalog.CategoryQuality, catalog.TypeBoolean, "Whether the authors declare conflicts of interest", nil},
	{"funding", "Funding source", catalog.CategoryQuality, catalog.TypeText, "Who funded the study", nil},
	// other
	{"setting", "Setting", catalog.CategoryOther, catalog.TypeText, "Context where the study took place", nil},
	{"subgroup", "Subgroup analysed", catalog.CategoryOther, catalog.TypeText, "Subgroup the extracted data refers to", nil},
	{"measurement_time", "Measurement time", catalog.CategoryOther, catalog.TypeText, "Time point of the measurement", nil},
	{"adverse_effects", "Adverse effects", catalog.CategoryOther, catalog.TypeText, "Reported adverse effects", nil},
	{"i_squared", "Heterogeneity (I squared)", catalog.CategoryOther, catalog.TypeNumber, "I squared heterogeneity statistic", nil},
	{"cochran_q", "Cochran's Q", catalog.CategoryOther, catalog.TypeNumber, "Cochran's Q statistic", nil},
	{"tau_squared", "Tau squared", catalog.CategoryOther, catalog.TypeNumber, "Between-study variance", nil},
	{"additional_notes", "Additional notes", catalog.CategoryOther, catalog.TypeText, "Anything else worth recording", nil},
}

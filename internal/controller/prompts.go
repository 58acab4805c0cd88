package controller

import "fmt"

const draftPromptTemplate = `You are a senior equity research analyst. Using ONLY the filing summaries below, produce a structured investment analysis as JSON with EXACTLY these keys: "executiveSummary", "financialAnalysis", "investmentOpportunities", "riskAssessment", "marketPosition", "valuationInsights", "recommendation", "confidenceLevel", "dataGaps" (an array of strings naming what's missing). Return JSON only.

[INVESTMENT QUERY]
%s

[AVAILABLE FILING SUMMARIES]
%s`

func draftPrompt(query, documentSummaries string) string {
	return fmt.Sprintf(draftPromptTemplate, query, documentSummaries)
}

const evaluatePromptTemplate = `You are a senior investment committee member reviewing a junior analyst's draft. Grade it rigorously for completeness and rigor. Respond with JSON only, with EXACTLY these keys: "overallAssessment" (string), "completenessScore" (integer 1-10), "specificQuestions" (array of strings), "missingAreas" (array of strings), "dataNeeds" (array of strings), "methodologyConcerns" (array of strings), "actionability" (string), "nextSteps" (array of strings), "isAnalysisComplete" (bool).

[INVESTMENT QUERY]
%s

[CURRENT ANALYSIS]
%s`

func evaluatePrompt(query, analysisJSON string) string {
	return fmt.Sprintf(evaluatePromptTemplate, query, analysisJSON)
}

const retrieveQueriesPromptTemplate = `Based on the committee's evaluation below and the filings already available, write 3 to 5 targeted retrieval queries that would close the most important gaps. Respond with a JSON array of strings only, no other text.

[EVALUATION]
%s

[AVAILABLE FILING SUMMARIES]
%s`

func retrieveQueriesPrompt(evaluationJSON, documentSummaries string) string {
	return fmt.Sprintf(retrieveQueriesPromptTemplate, evaluationJSON, documentSummaries)
}

const refinePromptTemplate = `You are the same senior equity research analyst. Integrate the new evidence below into your analysis, preserving its overall structure. Respond with JSON only, using EXACTLY the same keys as the original analysis: "executiveSummary", "financialAnalysis", "investmentOpportunities", "riskAssessment", "marketPosition", "valuationInsights", "recommendation", "confidenceLevel", "dataGaps".

[ORIGINAL ANALYSIS]
%s

[NEW EVIDENCE FROM TARGETED RETRIEVAL]
%s`

func refinePrompt(originalAnalysisJSON, ragResults string) string {
	return fmt.Sprintf(refinePromptTemplate, originalAnalysisJSON, ragResults)
}

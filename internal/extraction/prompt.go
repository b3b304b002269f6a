package extraction

import "github.com/cloo-solutions/docextract/internal/openai"

const systemPrompt = `You are a meticulous data extraction engine. You will be given a single small block of text. Extract every distinct entity (individual or organization) mentioned in it.

Return ONLY a JSON object of the form {"entities": [...]}. If no entities are found, return {"entities": []}.

Each entity is an object with these fields:
- "primary_name": the entity's main name
- "entity_type": "Individual", "Organization" or "Unknown"
- "aliases": list of alternative names
- "identifiers": list of {"type", "value", "issuing_country", "notes"} (passports, registration numbers, tax IDs)
- "addresses": list of {"street", "city", "state_province", "postal_code", "country", "full_address"}; country and full_address are required
- "locations": list of {"type", "location", "country", "notes"} for links such as Nationality or Residency
- "dates": list of {"type", "date", "notes"} for events such as Birth or Incorporation
- "assertions": list of {"type", "description", "source_citation", "effective_date", "end_date", "properties"} for other facts such as a legal role or sanction status; dates as YYYY-MM-DD
- "relationships": list of {"related_entity_name", "relationship_type"}
- "confidence_score": number between 0.0 and 1.0

Use only information present in the text. Omit fields you cannot populate.`

const repairPrompt = `The following text was supposed to be valid JSON of the form {"entities": [...]} but could not be parsed. Fix it and return ONLY the corrected JSON, with no commentary.`

func extractionMessages(chunk string) []openai.Message {
	return []openai.Message{
		{Role: openai.RoleSystem, Content: systemPrompt},
		{Role: openai.RoleUser, Content: chunk},
	}
}

func repairMessages(malformed string) []openai.Message {
	return []openai.Message{
		{Role: openai.RoleSystem, Content: repairPrompt},
		{Role: openai.RoleUser, Content: malformed},
	}
}

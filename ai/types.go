package ai

// AnswerTemplateVersion identifies the prompt template used for answer
// generation. It participates in the prompt hash, so bumping it invalidates
// previously cached answers.
const AnswerTemplateVersion = "answer-v1"

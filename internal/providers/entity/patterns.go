// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"regexp"
	"strings"
)

// Recognized entity type identifiers.
const (
	TypePerson     = "PERSON"
	TypeEmail      = "EMAIL_ADDRESS"
	TypePhone      = "PHONE_NUMBER"
	TypeSSN        = "US_SSN"
	TypeCreditCard = "CREDIT_CARD"
	TypeIPAddress  = "IP_ADDRESS"
	TypeURL        = "URL"
	TypeDateTime   = "DATE_TIME"
	TypeIBAN       = "IBAN_CODE"
	TypePassport   = "US_PASSPORT"
)

// pattern associates an entity type with its recognizer. Patterns run in
// slice order; earlier patterns claim their spans first, so the more
// structured formats (email, SSN, card) come before the looser ones
// (phone, person-name heuristic).
type pattern struct {
	entityType string
	regex      *regexp.Regexp
}

var defaultPatterns = []pattern{
	{TypeEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{TypeURL, regexp.MustCompile(`https?://[A-Za-z0-9._~:/?#\[\]@!$&'()*+,;=%-]+`)},
	{TypeSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{TypeCreditCard, regexp.MustCompile(`\b\d{4}[-\s]\d{4}[-\s]\d{4}[-\s]\d{4}\b|\b\d{15,16}\b`)},
	{TypeIBAN, regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)},
	{TypeIPAddress, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{TypePhone, regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.\s]?\d{4}|\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b|\+\d{1,3}[-.\s]?\d{2,4}[-.\s]?\d{3,4}[-.\s]?\d{3,4}`)},
	{TypeDateTime, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)},
	{TypePerson, regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)},
}

// personStopWords are leading words of capitalized bigrams that are almost
// never the start of a person name in email prose.
var personStopWords = map[string]bool{
	"Dear": true, "Best": true, "Kind": true, "Many": true, "Thank": true,
	"Yours": true, "With": true, "The": true, "This": true, "That": true,
	"New": true, "United": true, "Monday": true, "Tuesday": true,
	"Wednesday": true, "Thursday": true, "Friday": true, "Saturday": true,
	"Sunday": true, "January": true, "February": true, "March": true,
	"April": true, "June": true, "July": true, "August": true,
	"September": true, "October": true, "November": true, "December": true,
}

// plausiblePerson filters the person-name heuristic: both words must look
// like name tokens and the first must not be a salutation or calendar word.
func plausiblePerson(match string) bool {
	words := strings.Fields(match)
	if len(words) != 2 {
		return false
	}
	if personStopWords[words[0]] || personStopWords[words[1]] {
		return false
	}
	return true
}

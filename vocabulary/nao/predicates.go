package nao

import "github.com/c360studio/semstreams/vocabulary"

// Dotted predicate names for resource properties. Each maps to one IRI above.
const (
	// PredicateType is the class membership of a resource.
	PredicateType = "rdf.resource.type"

	// PredicateLabel is the rdfs label.
	PredicateLabel = "rdfs.resource.label"

	// PredicateComment is the rdfs comment.
	PredicateComment = "rdfs.resource.comment"

	// PredicateSubClassOf is the rdfs class hierarchy link.
	PredicateSubClassOf = "rdfs.class.subclass_of"

	// PredicateHasTag links a resource to a tag.
	PredicateHasTag = "nao.resource.has_tag"

	// PredicateRating is the numeric 0-10 rating.
	PredicateRating = "nao.resource.rating"

	// PredicateLegacyRating is the older hasRating predicate.
	PredicateLegacyRating = "nao.resource.has_rating"

	// PredicateIdentifier is an opaque identifier the resource was created from.
	PredicateIdentifier = "nao.resource.identifier"

	// PredicatePrefLabel is the preferred label.
	PredicatePrefLabel = "nao.resource.pref_label"

	// PredicateDescription is the free text description.
	PredicateDescription = "nao.resource.description"

	// PredicateIsRelated links related resources.
	PredicateIsRelated = "nao.resource.is_related"

	// PredicateCreated is the RFC3339 creation timestamp.
	PredicateCreated = "nao.resource.created"

	// PredicateLastModified is the RFC3339 modification timestamp.
	PredicateLastModified = "nao.resource.last_modified"

	// PredicateHasSymbol links a resource to its symbol.
	PredicateHasSymbol = "nao.resource.has_symbol"

	// PredicateURL is the location of an information element.
	PredicateURL = "nie.element.url"

	// PredicateTitle is the title of an information element.
	PredicateTitle = "nie.element.title"
)

func init() {
	registerRDFPredicates()
	registerNAOPredicates()
	registerNIEPredicates()
}

func registerRDFPredicates() {
	vocabulary.Register(PredicateType,
		vocabulary.WithDescription("Class membership"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(RDFType))

	vocabulary.Register(PredicateLabel,
		vocabulary.WithDescription("Human readable label"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(RDFSLabel))

	vocabulary.Register(PredicateComment,
		vocabulary.WithDescription("Human readable comment"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(RDFSComment))

	vocabulary.Register(PredicateSubClassOf,
		vocabulary.WithDescription("Direct superclass of a class"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(RDFSSubClassOf))
}

func registerNAOPredicates() {
	vocabulary.Register(PredicateHasTag,
		vocabulary.WithDescription("Tag attached to the resource"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(HasTag))

	vocabulary.Register(PredicateRating,
		vocabulary.WithDescription("Rating between 0 and 10"),
		vocabulary.WithDataType("int"),
		vocabulary.WithIRI(NumericRating))

	vocabulary.Register(PredicateLegacyRating,
		vocabulary.WithDescription("Legacy rating between 0 and 10"),
		vocabulary.WithDataType("int"),
		vocabulary.WithIRI(HasRating))

	vocabulary.Register(PredicateIdentifier,
		vocabulary.WithDescription("Identifier the resource was created from"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Identifier))

	vocabulary.Register(PredicatePrefLabel,
		vocabulary.WithDescription("Preferred label"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(PrefLabel))

	vocabulary.Register(PredicateDescription,
		vocabulary.WithDescription("Free text description"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Description))

	vocabulary.Register(PredicateIsRelated,
		vocabulary.WithDescription("Related resource"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(IsRelated))

	vocabulary.Register(PredicateCreated,
		vocabulary.WithDescription("Creation timestamp"),
		vocabulary.WithDataType("datetime"),
		vocabulary.WithIRI(Created))

	vocabulary.Register(PredicateLastModified,
		vocabulary.WithDescription("Last modification timestamp"),
		vocabulary.WithDataType("datetime"),
		vocabulary.WithIRI(LastModified))

	vocabulary.Register(PredicateHasSymbol,
		vocabulary.WithDescription("Symbol representing the resource"),
		vocabulary.WithDataType("entity_id"),
		vocabulary.WithIRI(HasSymbol))
}

func registerNIEPredicates() {
	vocabulary.Register(PredicateURL,
		vocabulary.WithDescription("Location of the information element"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(URL))

	vocabulary.Register(PredicateTitle,
		vocabulary.WithDescription("Title of the information element"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Title))
}

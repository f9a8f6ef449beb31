package sdata

// testSchema is a small movie database used across the package tests.
const testSchema = `
nodes:
  - name: Movie
    fields:
      - name: id
        type: ID
        autogenerate: true
      - name: title
        type: String
      - name: released
        type: Int
      - name: createdAt
        type: DateTime
        timestamps: [CREATE]
      - name: updatedAt
        type: DateTime
        timestamps: [CREATE, UPDATE]
    relationships:
      - name: actors
        type: ACTED_IN
        direction: IN
        target: Actor
        array: true
        properties: ActedIn
      - name: genres
        type: IN_GENRE
        direction: OUT
        target: Genre
        array: true
      - name: director
        type: DIRECTED
        direction: IN
        target: Person

  - name: Actor
    fields:
      - name: id
        type: ID
        autogenerate: true
      - name: name
        type: String
      - name: born
        type: Date
    relationships:
      - name: movies
        type: ACTED_IN
        direction: OUT
        target: Movie
        array: true
        properties: ActedIn
      - name: productions
        type: ACTED_IN
        direction: OUT
        target: Production
        array: true
        properties: ActedIn
    auth:
      rules:
        - operations: [delete]
          where:
            id: $jwt.sub
        - operations: [delete]
          allow:
            id: $jwt.sub

  - name: Series
    fields:
      - name: id
        type: ID
        autogenerate: true
      - name: title
        type: String
      - name: episodes
        type: Int
    relationships:
      - name: actors
        type: ACTED_IN
        direction: IN
        target: Actor
        array: true
        properties: ActedIn
    auth:
      rules:
        - operations: [read]
          is_authenticated: true

  - name: Genre
    fields:
      - name: name
        type: String
    auth:
      rules:
        - operations: [delete]
          roles: [admin]

  - name: Person
    labels: [Person, Director]
    fields:
      - name: name
        type: String
        db_name: fullName
    relationships:
      - name: movies
        type: DIRECTED
        direction: OUT
        target: Movie
        array: true

unions:
  - name: Production
    members: [Movie, Series]

relationship_properties:
  - name: ActedIn
    fields:
      - name: id
        type: ID
        autogenerate: true
      - name: screenTime
        type: Int
      - name: role
        type: String
      - name: since
        type: DateTime
        timestamps: [CREATE]
`

// GetTestSchema returns the movie schema used by tests.
func GetTestSchema() (*Schema, error) {
	return Load([]byte(testSchema))
}

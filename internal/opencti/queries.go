package opencti

const subTypesQuery = `
query SubTypes {
  subTypes {
    edges {
      node {
        id
        label
        workflowEnabled
        statuses {
          edges {
            node {
              id
              order
              template {
                id
                name
                color
              }
            }
          }
        }
      }
    }
  }
}`

// relationshipTargetFields resolves id, type and display name of either side
// of a relationship. Name lives on the concrete types, not on the union.
const relationshipTargetFields = `
      ... on BasicObject {
        id
        entity_type
      }
      ... on Indicator {
        name
      }
      ... on Malware {
        name
      }
      ... on Tool {
        name
      }
      ... on ThreatActor {
        name
      }
      ... on IntrusionSet {
        name
      }
      ... on Campaign {
        name
      }
      ... on AttackPattern {
        name
      }
      ... on Infrastructure {
        name
      }
      ... on Identity {
        name
      }
      ... on Location {
        name
      }
      ... on Vulnerability {
        name
      }
      ... on Incident {
        name
      }`

const relationshipsQuery = `
query Relationships($fromOrToId: [String], $relationship_type: [String], $first: Int) {
  stixCoreRelationships(fromOrToId: $fromOrToId, relationship_type: $relationship_type, first: $first) {
    edges {
      node {
        id
        relationship_type
        from {` + relationshipTargetFields + `
        }
        to {` + relationshipTargetFields + `
        }
      }
    }
  }
}`

const indicatorQuery = `
query Indicator($id: String!) {
  indicator(id: $id) {
    id
    name
    valid_from
    valid_until
    status {
      id
    }
    creator {
      name
    }
    x_opencti_detection
    x_opencti_score
    x_opencti_main_observable_type
    observables {
      edges {
        node {
          id
          entity_type
          observable_value
        }
      }
    }
  }
}`

const observedDataQuery = `
query ObservedData($filters: FilterGroup) {
  observedDatas(first: 1, filters: $filters) {
    edges {
      node {
        id
        first_observed
        last_observed
        number_observed
      }
    }
  }
}`

const reportsQuery = `
query Reports($filters: FilterGroup, $first: Int) {
  reports(first: $first, orderBy: published, orderMode: desc, filters: $filters) {
    edges {
      node {
        id
        name
        description
        published
      }
    }
  }
}`
